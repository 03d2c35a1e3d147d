package repository

import (
	"context"

	"anoa.com/studyhub/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReactionRepository interface {
	WithTx(tx *gorm.DB) ReactionRepository
	// Remove deletes the user's reaction and reports how many rows went.
	Remove(ctx context.Context, userID uuid.UUID, target entity.MessageRef, emoji string) (int64, error)
	// Add inserts the reaction unless it already exists and reports how
	// many rows were inserted.
	Add(ctx context.Context, reaction *entity.Reaction) (int64, error)
	GetUserReactions(ctx context.Context, userID uuid.UUID, target entity.MessageRef) ([]string, error)
	GetReactionsCount(ctx context.Context, target entity.MessageRef) (map[string]int64, error)
}

type reactionRepository struct {
	db *gorm.DB
}

func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

func (r *reactionRepository) WithTx(tx *gorm.DB) ReactionRepository {
	return &reactionRepository{db: tx}
}

func (r *reactionRepository) Remove(ctx context.Context, userID uuid.UUID, target entity.MessageRef, emoji string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND target_kind = ? AND target_id = ? AND emoji = ?",
			userID, target.Kind(), target.MessageID(), emoji).
		Delete(&entity.Reaction{})
	return res.RowsAffected, res.Error
}

func (r *reactionRepository) Add(ctx context.Context, reaction *entity.Reaction) (int64, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(reaction)
	return res.RowsAffected, res.Error
}

func (r *reactionRepository) GetUserReactions(ctx context.Context, userID uuid.UUID, target entity.MessageRef) ([]string, error) {
	var emojis []string
	err := r.db.WithContext(ctx).
		Model(&entity.Reaction{}).
		Where("user_id = ? AND target_kind = ? AND target_id = ?", userID, target.Kind(), target.MessageID()).
		Order("created_at asc").
		Pluck("emoji", &emojis).Error
	return emojis, err
}

func (r *reactionRepository) GetReactionsCount(ctx context.Context, target entity.MessageRef) (map[string]int64, error) {
	type Result struct {
		Emoji string
		Count int64
	}
	var results []Result

	err := r.db.WithContext(ctx).
		Model(&entity.Reaction{}).
		Select("emoji, count(*) as count").
		Where("target_kind = ? AND target_id = ?", target.Kind(), target.MessageID()).
		Group("emoji").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(results))
	for _, res := range results {
		counts[res.Emoji] = res.Count
	}
	return counts, nil
}
