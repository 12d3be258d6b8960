package application

import (
	"context"
	"fmt"
	"time"

	"applicant-tracker/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const EventCandidateNotified = "candidate.notified"

// CandidateNotified is the outbox payload written with every notification.
type CandidateNotified struct {
	CandidateID    string    `json:"candidateId"`
	NotificationID uint      `json:"notificationId"`
	Email          string    `json:"email"`
	Score          int       `json:"score"`
	Qualified      bool      `json:"qualified"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Notifier emits exactly one result notification per candidate.
type Notifier struct {
	db    *gorm.DB
	relay *OutboxRelay
	log   *logrus.Logger
}

func NewNotifier(db *gorm.DB, relay *OutboxRelay, log *logrus.Logger) *Notifier {
	return &Notifier{db: db, relay: relay, log: log}
}

func (n *Notifier) Threshold() int {
	return domain.ScoreThreshold
}

// Notify records the qualified or rejected notification for candidate.
// It returns nil, nil when a notification was already sent.
func (n *Notifier) Notify(ctx context.Context, candidate *domain.Candidate, score int) (*domain.Notification, error) {
	if candidate.NotificationSent {
		return nil, nil
	}

	notification := buildNotification(candidate.ID, score)
	sent := false

	err := n.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Candidate{}).
			Where("id = ? AND notification_sent = ?", candidate.ID, false).
			Update("notification_sent", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Create(notification).Error; err != nil {
			return err
		}

		msg, err := NewOutboxMessage(EventCandidateNotified, CandidateNotified{
			CandidateID:    candidate.ID,
			NotificationID: notification.ID,
			Email:          candidate.Email,
			Score:          score,
			Qualified:      score >= domain.ScoreThreshold,
			OccurredAt:     notification.CreatedAt,
		})
		if err != nil {
			return err
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		sent = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record notification: %w", err)
	}
	if !sent {
		return nil, nil
	}

	candidate.NotificationSent = true
	n.log.WithFields(logrus.Fields{
		"candidate_id": candidate.ID,
		"score":        score,
		"qualified":    score >= domain.ScoreThreshold,
	}).Info("notification sent")

	if n.relay != nil {
		n.relay.Trigger(ctx)
	}
	return notification, nil
}

func buildNotification(candidateID string, score int) *domain.Notification {
	threshold := domain.ScoreThreshold
	n := &domain.Notification{
		CandidateID: candidateID,
		Score:       score,
		CreatedAt:   time.Now(),
	}
	if score >= threshold {
		n.Title = "Good news!"
		n.Message = fmt.Sprintf("Congratulations! Your application scored %d/100, which exceeds our minimum "+
			"threshold of %d. We would be interested in an interview with you!", score, threshold)
	} else {
		n.Title = "Your application result"
		n.Message = fmt.Sprintf("Thank you for your interest! Your application scored %d/100. "+
			"Unfortunately this is below our threshold of %d/100. "+
			"We encourage you to apply again in the future!", score, threshold)
	}
	return n
}

func (n *Notifier) ListForCandidate(ctx context.Context, candidateID string) ([]domain.Notification, error) {
	var out []domain.Notification
	err := n.db.WithContext(ctx).
		Where("candidate_id = ?", candidateID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// MarkRead flags one of the candidate's notifications as read.
func (n *Notifier) MarkRead(ctx context.Context, candidateID string, notificationID uint) error {
	res := n.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("id = ? AND candidate_id = ?", notificationID, candidateID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		err := n.db.WithContext(ctx).Model(&domain.Notification{}).
			Where("id = ? AND candidate_id = ?", notificationID, candidateID).Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to look up notification %d: %w", notificationID, err)
		}
		if count == 0 {
			return domain.NotFound("notification")
		}
	}
	return nil
}

func (n *Notifier) UnreadCount(ctx context.Context, candidateID string) (int64, error) {
	var count int64
	err := n.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("candidate_id = ? AND is_read = ?", candidateID, false).
		Count(&count).Error
	return count, err
}
