package domain

import "time"

// JobDescription is the posted role candidates are scored against.
type JobDescription struct {
	ID          uint   `gorm:"primaryKey"`
	Title       string `gorm:"size:255;not null"`
	Description string `gorm:"type:text;not null"`
	IsActive    bool   `gorm:"not null;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (JobDescription) TableName() string {
	return "job_descriptions"
}
