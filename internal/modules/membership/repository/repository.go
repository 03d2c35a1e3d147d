package repository

import (
	"context"
	"errors"

	"anoa.com/studyhub/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MembershipRepository reads group membership and chat participancy. It
// never writes.
type MembershipRepository interface {
	WithTx(tx *gorm.DB) MembershipRepository
	GroupExists(ctx context.Context, groupID uuid.UUID) (bool, error)
	FindMembership(ctx context.Context, userID, groupID uuid.UUID) (*entity.GroupMembership, error)
	MemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)
	MemberIDsWithRank(ctx context.Context, groupID uuid.UUID, ranks ...entity.Rank) ([]uuid.UUID, error)
	FindChat(ctx context.Context, chatID uuid.UUID) (*entity.PrivateChat, error)
}

type membershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) WithTx(tx *gorm.DB) MembershipRepository {
	return &membershipRepository{db: tx}
}

func (r *membershipRepository) GroupExists(ctx context.Context, groupID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.StudyGroup{}).Where("id = ?", groupID).Count(&count).Error
	return count > 0, err
}

// FindMembership returns nil, nil when the user is not a member.
func (r *membershipRepository) FindMembership(ctx context.Context, userID, groupID uuid.UUID) (*entity.GroupMembership, error) {
	var memberships []entity.GroupMembership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Limit(1).
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, nil
	}
	return &memberships[0], nil
}

func (r *membershipRepository) MemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&entity.GroupMembership{}).
		Where("group_id = ?", groupID).
		Order("joined_at asc").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *membershipRepository) MemberIDsWithRank(ctx context.Context, groupID uuid.UUID, ranks ...entity.Rank) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&entity.GroupMembership{}).
		Where("group_id = ? AND rank IN ?", groupID, ranks).
		Order("joined_at asc").
		Pluck("user_id", &ids).Error
	return ids, err
}

// FindChat returns gorm.ErrRecordNotFound when the chat does not exist.
func (r *membershipRepository) FindChat(ctx context.Context, chatID uuid.UUID) (*entity.PrivateChat, error) {
	var chat entity.PrivateChat
	if err := r.db.WithContext(ctx).Where("id = ?", chatID).First(&chat).Error; err != nil {
		return nil, err
	}
	return &chat, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
