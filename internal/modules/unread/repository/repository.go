package repository

import (
	"context"

	"anoa.com/studyhub/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UnreadRepository interface {
	CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int64, error)
	CountUnreadMessages(ctx context.Context, userID uuid.UUID) (int64, error)
	CountPendingFriendRequests(ctx context.Context, userID uuid.UUID) (int64, error)
	CountPendingJoinRequests(ctx context.Context, userID uuid.UUID) (int64, error)
}

type unreadRepository struct {
	db *gorm.DB
}

func NewUnreadRepository(db *gorm.DB) UnreadRepository {
	return &unreadRepository{db: db}
}

func (r *unreadRepository) CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// CountUnreadMessages counts unread messages sent to userID in any of
// their private chats.
func (r *unreadRepository) CountUnreadMessages(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.PrivateMessage{}).
		Joins("JOIN private_chats ON private_chats.id = private_messages.chat_id").
		Where("(private_chats.participant_low = ? OR private_chats.participant_high = ?)", userID, userID).
		Where("private_messages.sender_id <> ? AND private_messages.is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *unreadRepository) CountPendingFriendRequests(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Friendship{}).
		Where("to_user_id = ? AND status = ?", userID, entity.FriendshipPending).
		Count(&count).Error
	return count, err
}

// CountPendingJoinRequests counts pending requests across every group the
// user administers, each request once.
func (r *unreadRepository) CountPendingJoinRequests(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.JoinRequest{}).
		Joins("JOIN group_memberships ON group_memberships.group_id = join_requests.group_id").
		Where("group_memberships.user_id = ? AND group_memberships.rank IN ?", userID, []entity.Rank{entity.RankAdmin, entity.RankCreator}).
		Where("join_requests.status = ?", entity.JoinRequestPending).
		Distinct("join_requests.id").
		Count(&count).Error
	return count, err
}
