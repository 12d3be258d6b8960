package domain

import "time"

type Admin struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"size:255;not null;uniqueIndex"`
	Password  string `gorm:"size:255;not null"`
	Email     string `gorm:"size:255;not null"`
	CreatedAt time.Time
	IsActive  bool `gorm:"not null;index"`
}

func (Admin) TableName() string {
	return "admins"
}
