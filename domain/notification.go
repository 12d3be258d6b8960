package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Notification struct {
	ID          uint   `gorm:"primaryKey"`
	CandidateID string `gorm:"size:36;not null;index"`
	Title       string `gorm:"size:255;not null"`
	Message     string `gorm:"type:text;not null"`
	Score       int    `gorm:"not null"`
	IsRead      bool   `gorm:"not null"`
	CreatedAt   time.Time
}

func (Notification) TableName() string {
	return "notifications"
}

// MessengerMessage is an outbox row. Rows are written in the same transaction
// as the state change they describe and relayed to the broker afterwards.
type MessengerMessage struct {
	ID          uint              `gorm:"primaryKey"`
	Body        string            `gorm:"type:text;not null"`
	Headers     datatypes.JSONMap `gorm:"type:text"`
	QueueName   string            `gorm:"size:190;not null;index"`
	CreatedAt   time.Time
	AvailableAt time.Time  `gorm:"not null;index"`
	DeliveredAt *time.Time `gorm:"index"`
}

func (MessengerMessage) TableName() string {
	return "messenger_messages"
}
