// Package mailbox provides the durable, at-least-once message queue that
// drones poll for work.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KramerO/ollama-flow-sub002/internal/db"
	"github.com/KramerO/ollama-flow-sub002/internal/models"
	"gorm.io/gorm"
)

// Message types.
const (
	TypeTask   = "task"
	TypeResult = "result"
	TypeError  = "error"
)

// ErrNotFound is returned by MarkProcessed and Get for an unknown message ID.
var ErrNotFound = errors.New("mailbox: message not found")

// SendOpts holds optional parameters for enqueuing a message.
type SendOpts struct {
	CorrelationID string
}

// Store is the mailbox contract shared by drones and the CLI. Each
// receiver's fetch/mark pair is independent; there is no cross-receiver
// transaction.
type Store interface {
	Enqueue(ctx context.Context, from, to, msgType, content string, opts SendOpts) (*models.Message, error)
	FetchPending(ctx context.Context, receiver string) ([]models.Message, error)
	MarkProcessed(ctx context.Context, messageID uint) error
}

// GormStore is a Store backed by the messages table.
type GormStore struct {
	db *gorm.DB
}

// New returns a GormStore using the given connection.
func New(gormDB *gorm.DB) *GormStore {
	return &GormStore{db: gormDB}
}

// Enqueue appends a message for receiver. The database assigns the ID, which
// is the message's sequence number.
func (s *GormStore) Enqueue(ctx context.Context, from, to, msgType, content string, opts SendOpts) (*models.Message, error) {
	if from == "" {
		return nil, fmt.Errorf("mailbox: from is required")
	}
	if to == "" {
		return nil, fmt.Errorf("mailbox: to is required")
	}
	if msgType == "" {
		return nil, fmt.Errorf("mailbox: type is required")
	}

	msg := models.Message{
		SenderID:      from,
		ReceiverID:    to,
		Type:          msgType,
		Content:       content,
		CorrelationID: opts.CorrelationID,
		CreatedAt:     time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, db.Unavailable("mailbox: enqueue", err)
	}
	return &msg, nil
}

// FetchPending returns unprocessed messages for receiver in sequence order.
func (s *GormStore) FetchPending(ctx context.Context, receiver string) ([]models.Message, error) {
	if receiver == "" {
		return nil, fmt.Errorf("mailbox: receiver is required")
	}

	var msgs []models.Message
	if err := s.db.WithContext(ctx).
		Where("receiver_id = ? AND processed = ?", receiver, false).
		Order("id ASC").Find(&msgs).Error; err != nil {
		return nil, db.Unavailable("mailbox: fetch "+receiver, err)
	}
	return msgs, nil
}

// MarkProcessed flags a message as handled. Marking an already processed
// message is a no-op.
func (s *GormStore) MarkProcessed(ctx context.Context, messageID uint) error {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND processed = ?", messageID, false).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now})
	if result.Error != nil {
		return db.Unavailable(fmt.Sprintf("mailbox: mark %d", messageID), result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", messageID).Count(&count).Error; err != nil {
		return db.Unavailable(fmt.Sprintf("mailbox: mark %d", messageID), err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, messageID)
	}
	return nil
}

// Get retrieves a message by ID.
func (s *GormStore) Get(ctx context.Context, messageID uint) (*models.Message, error) {
	var msg models.Message
	if err := s.db.WithContext(ctx).Where("id = ?", messageID).First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, messageID)
		}
		return nil, db.Unavailable(fmt.Sprintf("mailbox: get %d", messageID), err)
	}
	return &msg, nil
}

// Correlated returns every message sharing a correlation ID, in sequence order.
func (s *GormStore) Correlated(ctx context.Context, correlationID string) ([]models.Message, error) {
	if correlationID == "" {
		return nil, fmt.Errorf("mailbox: correlationID is required")
	}

	var msgs []models.Message
	if err := s.db.WithContext(ctx).Where("correlation_id = ?", correlationID).
		Order("id ASC").Find(&msgs).Error; err != nil {
		return nil, db.Unavailable("mailbox: correlated "+correlationID, err)
	}
	return msgs, nil
}
