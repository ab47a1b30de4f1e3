package models

import "time"

// Message is a durable mailbox entry addressed to one drone. ID doubles as
// the sequence number: it is assigned on insert and is the ordering key.
type Message struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	SenderID      string `gorm:"size:64;not null"`
	ReceiverID    string `gorm:"size:64;not null;index:idx_messages_pending,priority:1"`
	Type          string `gorm:"size:16;not null"`
	Content       string `gorm:"type:text"`
	CorrelationID string `gorm:"size:64;index"`
	Processed     bool   `gorm:"default:false;index:idx_messages_pending,priority:2"`
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}
