package service

import (
	"context"
	"fmt"

	"anoa.com/studyhub/internal/entity"
	"anoa.com/studyhub/internal/modules/event"
	notifRepo "anoa.com/studyhub/internal/modules/notification/repository"
	"anoa.com/studyhub/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// CountInvalidator drops cached unread counts.
type CountInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...uuid.UUID)
}

type NotificationStore interface {
	// Record stores one row per recipient inside tx.
	Record(ctx context.Context, tx *gorm.DB, ev event.NotificationEvent) ([]entity.Notification, error)
	List(ctx context.Context, recipientID uuid.UUID, limit int) ([]entity.Notification, error)
	MarkRead(ctx context.Context, recipientID uuid.UUID, ids []uuid.UUID) (int64, error)
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error)
	DetachGroup(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) error
}

type notificationStore struct {
	repo   notifRepo.NotificationRepository
	counts CountInvalidator
}

func NewNotificationStore(repo notifRepo.NotificationRepository, counts CountInvalidator) NotificationStore {
	return &notificationStore{repo: repo, counts: counts}
}

func (s *notificationStore) Record(ctx context.Context, tx *gorm.DB, ev event.NotificationEvent) ([]entity.Notification, error) {
	if !ev.Persist {
		return nil, nil
	}
	ev.Recipients = unique(ev.Recipients)
	if len(ev.Recipients) == 0 {
		return nil, nil
	}

	repo := s.repo.WithTx(tx)

	found, err := repo.CountUsers(ctx, ev.Recipients)
	if err != nil {
		return nil, err
	}
	if found != int64(len(ev.Recipients)) {
		return nil, apperror.Invariant(fmt.Sprintf("%s notification addressed to %d unknown recipient(s)", ev.Type, int64(len(ev.Recipients))-found))
	}

	records := ev.Records()
	if err := repo.CreateBatch(ctx, records); err != nil {
		return nil, err
	}

	out := make([]entity.Notification, 0, len(records))
	for _, r := range records {
		out = append(out, *r)
	}
	return out, nil
}

func (s *notificationStore) List(ctx context.Context, recipientID uuid.UUID, limit int) ([]entity.Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.repo.GetByRecipient(ctx, recipientID, limit)
}

func (s *notificationStore) MarkRead(ctx context.Context, recipientID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.repo.MarkAsRead(ctx, recipientID, ids)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.counts.Invalidate(ctx, recipientID)
	}
	return n, nil
}

func (s *notificationStore) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	n, err := s.repo.MarkAllAsRead(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.counts.Invalidate(ctx, recipientID)
	}
	return n, nil
}

func (s *notificationStore) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, recipientID)
}

func (s *notificationStore) DetachGroup(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) error {
	return s.repo.WithTx(tx).DetachGroup(ctx, groupID)
}

func unique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context, ...uuid.UUID) {}

// NopInvalidator is used when no count cache is configured.
func NopInvalidator() CountInvalidator { return nopInvalidator{} }
