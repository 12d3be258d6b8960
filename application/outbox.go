package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"applicant-tracker/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventPublisher delivers an outbox message to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, headers map[string]interface{}, body []byte) error
}

// NewOutboxMessage builds an outbox row for event with payload as its JSON body.
func NewOutboxMessage(event string, payload interface{}) (*domain.MessengerMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	now := time.Now()
	return &domain.MessengerMessage{
		Body:        string(body),
		Headers:     datatypes.JSONMap{"type": event, "content_type": "application/json"},
		QueueName:   event,
		CreatedAt:   now,
		AvailableAt: now,
	}, nil
}

// OutboxRelay moves undelivered messenger_messages rows to the broker.
// Without a publisher rows stay queued.
type OutboxRelay struct {
	db        *gorm.DB
	publisher EventPublisher
	batchSize int
	log       *logrus.Logger
	mu        sync.Mutex
}

func NewOutboxRelay(db *gorm.DB, publisher EventPublisher, log *logrus.Logger) *OutboxRelay {
	return &OutboxRelay{db: db, publisher: publisher, batchSize: 100, log: log}
}

// Flush publishes pending rows oldest first and stops at the first publish
// failure so ordering is kept. It returns how many rows were delivered.
func (r *OutboxRelay) Flush(ctx context.Context) (int, error) {
	if r.publisher == nil {
		return 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []domain.MessengerMessage
	err := r.db.WithContext(ctx).
		Where("delivered_at IS NULL AND available_at <= ?", time.Now()).
		Order("id").
		Limit(r.batchSize).
		Find(&pending).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load outbox: %w", err)
	}

	delivered := 0
	for _, msg := range pending {
		headers := map[string]interface{}(msg.Headers)
		if err := r.publisher.Publish(ctx, msg.QueueName, headers, []byte(msg.Body)); err != nil {
			return delivered, fmt.Errorf("failed to publish outbox message %d: %w", msg.ID, err)
		}
		now := time.Now()
		err := r.db.WithContext(ctx).Model(&domain.MessengerMessage{}).
			Where("id = ?", msg.ID).
			Update("delivered_at", &now).Error
		if err != nil {
			return delivered, fmt.Errorf("failed to mark outbox message %d: %w", msg.ID, err)
		}
		delivered++
	}

	if delivered > 0 {
		r.log.WithField("delivered", delivered).Info("outbox relayed")
	}
	return delivered, nil
}

// Trigger flushes and logs instead of returning the error.
func (r *OutboxRelay) Trigger(ctx context.Context) {
	if _, err := r.Flush(ctx); err != nil {
		r.log.WithError(err).Warn("outbox relay failed, rows stay queued")
	}
}

// Run retries queued rows every interval until ctx is done.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) {
	if r.publisher == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Trigger(ctx)
		}
	}
}
