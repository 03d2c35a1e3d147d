package repository

import (
	"context"
	"time"

	"anoa.com/studyhub/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityRepository runs the bounded per-source queries the feed merges.
type ActivityRepository interface {
	RecentGroupMessages(ctx context.Context, userID uuid.UUID, limit int) ([]entity.GroupMessage, error)
	RecentPrivateMessages(ctx context.Context, userID uuid.UUID, limit int) ([]entity.PrivateMessage, error)
	RecentFriendEvents(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]entity.Friendship, error)
	PendingJoinRequests(ctx context.Context, adminID uuid.UUID, limit int) ([]entity.JoinRequest, error)
}

type activityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func selectUser(db *gorm.DB) *gorm.DB {
	return db.Select("id", "username", "full_name", "avatar_url")
}

func (r *activityRepository) RecentGroupMessages(ctx context.Context, userID uuid.UUID, limit int) ([]entity.GroupMessage, error) {
	var messages []entity.GroupMessage
	err := r.db.WithContext(ctx).
		Joins("JOIN group_memberships ON group_memberships.group_id = group_messages.group_id").
		Where("group_memberships.user_id = ? AND group_messages.sender_id <> ?", userID, userID).
		Order("group_messages.created_at desc").
		Limit(limit).
		Preload("Sender", selectUser).
		Preload("Group").
		Find(&messages).Error
	return messages, err
}

func (r *activityRepository) RecentPrivateMessages(ctx context.Context, userID uuid.UUID, limit int) ([]entity.PrivateMessage, error) {
	var messages []entity.PrivateMessage
	err := r.db.WithContext(ctx).
		Joins("JOIN private_chats ON private_chats.id = private_messages.chat_id").
		Where("(private_chats.participant_low = ? OR private_chats.participant_high = ?)", userID, userID).
		Where("private_messages.sender_id <> ?", userID).
		Order("private_messages.created_at desc").
		Limit(limit).
		Preload("Sender", selectUser).
		Find(&messages).Error
	return messages, err
}

// RecentFriendEvents returns requests waiting on userID and requests
// userID sent that were accepted after since.
func (r *activityRepository) RecentFriendEvents(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]entity.Friendship, error) {
	var friendships []entity.Friendship
	err := r.db.WithContext(ctx).
		Where("(to_user_id = ? AND status = ?) OR (from_user_id = ? AND status = ? AND updated_at >= ?)",
			userID, entity.FriendshipPending, userID, entity.FriendshipAccepted, since).
		Order("updated_at desc").
		Limit(limit).
		Preload("FromUser", selectUser).
		Preload("ToUser", selectUser).
		Find(&friendships).Error
	return friendships, err
}

func (r *activityRepository) PendingJoinRequests(ctx context.Context, adminID uuid.UUID, limit int) ([]entity.JoinRequest, error) {
	var requests []entity.JoinRequest
	err := r.db.WithContext(ctx).
		Joins("JOIN group_memberships ON group_memberships.group_id = join_requests.group_id").
		Where("group_memberships.user_id = ? AND group_memberships.rank IN ?", adminID, []entity.Rank{entity.RankAdmin, entity.RankCreator}).
		Where("join_requests.status = ?", entity.JoinRequestPending).
		Order("join_requests.created_at desc").
		Limit(limit).
		Preload("User", selectUser).
		Preload("Group").
		Find(&requests).Error
	return requests, err
}
