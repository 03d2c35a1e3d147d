package repository

import (
	"context"
	"time"

	"anoa.com/studyhub/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FriendshipRepository interface {
	WithTx(tx *gorm.DB) FriendshipRepository

	FindUser(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Friendship, error)
	// FindByPair returns nil, nil when the two users share no row.
	FindByPair(ctx context.Context, a, b uuid.UUID) (*entity.Friendship, error)
	// CreateIfAbsent reports 0 when the pair already has a row.
	CreateIfAbsent(ctx context.Context, f *entity.Friendship) (int64, error)
	// Transition moves the row from one status to another, optionally
	// rewriting its direction. It reports 0 when the row was not in from.
	Transition(ctx context.Context, id uuid.UUID, from, to entity.FriendshipStatus, fromUser, toUser uuid.UUID) (int64, error)
	// Reopen turns a declined row back into a pending request from fromUser
	// and restarts its clock. It reports 0 when the row was not declined.
	Reopen(ctx context.Context, id uuid.UUID, fromUser, toUser uuid.UUID, at time.Time) (int64, error)
	Block(ctx context.Context, id uuid.UUID, blocker, blocked uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) (int64, error)

	ListFriends(ctx context.Context, userID uuid.UUID) ([]entity.Friendship, error)
	ListIncoming(ctx context.Context, userID uuid.UUID) ([]entity.Friendship, error)
}

type friendshipRepository struct {
	db *gorm.DB
}

func NewFriendshipRepository(db *gorm.DB) FriendshipRepository {
	return &friendshipRepository{db: db}
}

func (r *friendshipRepository) WithTx(tx *gorm.DB) FriendshipRepository {
	return &friendshipRepository{db: tx}
}

func selectUser(db *gorm.DB) *gorm.DB {
	return db.Select("id", "username", "full_name", "avatar_url")
}

func (r *friendshipRepository) FindUser(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *friendshipRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Friendship, error) {
	var f entity.Friendship
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *friendshipRepository) FindByPair(ctx context.Context, a, b uuid.UUID) (*entity.Friendship, error) {
	low, high := entity.OrderedPair(a, b)
	var rows []entity.Friendship
	err := r.db.WithContext(ctx).
		Where("pair_low = ? AND pair_high = ?", low, high).
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (r *friendshipRepository) CreateIfAbsent(ctx context.Context, f *entity.Friendship) (int64, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(f)
	return res.RowsAffected, res.Error
}

func (r *friendshipRepository) Transition(ctx context.Context, id uuid.UUID, from, to entity.FriendshipStatus, fromUser, toUser uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Friendship{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":       to,
			"from_user_id": fromUser,
			"to_user_id":   toUser,
		})
	return res.RowsAffected, res.Error
}

func (r *friendshipRepository) Reopen(ctx context.Context, id uuid.UUID, fromUser, toUser uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Friendship{}).
		Where("id = ? AND status = ?", id, entity.FriendshipDeclined).
		Updates(map[string]interface{}{
			"status":       entity.FriendshipPending,
			"from_user_id": fromUser,
			"to_user_id":   toUser,
			"created_at":   at,
		})
	return res.RowsAffected, res.Error
}

func (r *friendshipRepository) Block(ctx context.Context, id uuid.UUID, blocker, blocked uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&entity.Friendship{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       entity.FriendshipBlocked,
			"from_user_id": blocker,
			"to_user_id":   blocked,
		}).Error
}

func (r *friendshipRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Friendship{})
	return res.RowsAffected, res.Error
}

func (r *friendshipRepository) ListFriends(ctx context.Context, userID uuid.UUID) ([]entity.Friendship, error) {
	var rows []entity.Friendship
	err := r.db.WithContext(ctx).
		Where("status = ? AND (from_user_id = ? OR to_user_id = ?)", entity.FriendshipAccepted, userID, userID).
		Preload("FromUser", selectUser).
		Preload("ToUser", selectUser).
		Order("updated_at desc").
		Find(&rows).Error
	return rows, err
}

func (r *friendshipRepository) ListIncoming(ctx context.Context, userID uuid.UUID) ([]entity.Friendship, error) {
	var rows []entity.Friendship
	err := r.db.WithContext(ctx).
		Where("status = ? AND to_user_id = ?", entity.FriendshipPending, userID).
		Preload("FromUser", selectUser).
		Order("created_at desc").
		Find(&rows).Error
	return rows, err
}
