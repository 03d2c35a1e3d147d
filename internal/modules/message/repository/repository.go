package repository

import (
	"context"
	"time"

	"anoa.com/studyhub/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepository interface {
	WithTx(tx *gorm.DB) MessageRepository

	FindUser(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindGroup(ctx context.Context, id uuid.UUID) (*entity.StudyGroup, error)

	CreateGroupMessage(ctx context.Context, msg *entity.GroupMessage) error
	FindGroupMessage(ctx context.Context, id uuid.UUID) (*entity.GroupMessage, error)
	GroupMessageInGroup(ctx context.Context, id, groupID uuid.UUID) (bool, error)
	UpdateGroupMessageContent(ctx context.Context, id uuid.UUID, content string) error
	DeleteGroupMessage(ctx context.Context, id uuid.UUID) error
	ListGroupMessages(ctx context.Context, groupID uuid.UUID, limit int) ([]entity.GroupMessage, error)
	TouchGroupActivity(ctx context.Context, groupID uuid.UUID, at time.Time) error

	FindChatByPair(ctx context.Context, low, high uuid.UUID) (*entity.PrivateChat, error)
	CreateChatIfAbsent(ctx context.Context, chat *entity.PrivateChat) error
	CreatePrivateMessage(ctx context.Context, msg *entity.PrivateMessage) error
	FindPrivateMessage(ctx context.Context, id uuid.UUID) (*entity.PrivateMessage, error)
	PrivateMessageInChat(ctx context.Context, id, chatID uuid.UUID) (bool, error)
	ListPrivateMessages(ctx context.Context, chatID uuid.UUID, limit int) ([]entity.PrivateMessage, error)
	MarkChatRead(ctx context.Context, chatID, readerID uuid.UUID) (int64, error)
	IsBlocked(ctx context.Context, a, b uuid.UUID) (bool, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) WithTx(tx *gorm.DB) MessageRepository {
	return &messageRepository{db: tx}
}

func (r *messageRepository) FindUser(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *messageRepository) FindGroup(ctx context.Context, id uuid.UUID) (*entity.StudyGroup, error) {
	var group entity.StudyGroup
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *messageRepository) CreateGroupMessage(ctx context.Context, msg *entity.GroupMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) FindGroupMessage(ctx context.Context, id uuid.UUID) (*entity.GroupMessage, error) {
	var msg entity.GroupMessage
	if err := r.db.WithContext(ctx).Preload("Sender").Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) GroupMessageInGroup(ctx context.Context, id, groupID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.GroupMessage{}).
		Where("id = ? AND group_id = ?", id, groupID).
		Count(&count).Error
	return count > 0, err
}

func (r *messageRepository) UpdateGroupMessageContent(ctx context.Context, id uuid.UUID, content string) error {
	return r.db.WithContext(ctx).
		Model(&entity.GroupMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"content": content, "edited": true}).Error
}

// DeleteGroupMessage removes the message with its reactions and detaches
// replies to it.
func (r *messageRepository) DeleteGroupMessage(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("target_kind = ? AND target_id = ?", entity.TargetGroupMessage, id).
		Delete(&entity.Reaction{}).Error; err != nil {
		return err
	}
	if err := db.Model(&entity.GroupMessage{}).Where("parent_id = ?", id).
		Update("parent_id", nil).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&entity.GroupMessage{}).Error
}

// ListGroupMessages returns the latest messages, oldest first.
func (r *messageRepository) ListGroupMessages(ctx context.Context, groupID uuid.UUID, limit int) ([]entity.GroupMessage, error) {
	var messages []entity.GroupMessage
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Preload("Sender").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *messageRepository) TouchGroupActivity(ctx context.Context, groupID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.StudyGroup{}).
		Where("id = ?", groupID).
		Update("last_activity_at", at).Error
}

func (r *messageRepository) FindChatByPair(ctx context.Context, low, high uuid.UUID) (*entity.PrivateChat, error) {
	var chat entity.PrivateChat
	err := r.db.WithContext(ctx).
		Where("participant_low = ? AND participant_high = ?", low, high).
		First(&chat).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// CreateChatIfAbsent inserts the chat unless the pair already has one.
func (r *messageRepository) CreateChatIfAbsent(ctx context.Context, chat *entity.PrivateChat) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(chat).Error
}

func (r *messageRepository) CreatePrivateMessage(ctx context.Context, msg *entity.PrivateMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) FindPrivateMessage(ctx context.Context, id uuid.UUID) (*entity.PrivateMessage, error) {
	var msg entity.PrivateMessage
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) PrivateMessageInChat(ctx context.Context, id, chatID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.PrivateMessage{}).
		Where("id = ? AND chat_id = ?", id, chatID).
		Count(&count).Error
	return count > 0, err
}

func (r *messageRepository) ListPrivateMessages(ctx context.Context, chatID uuid.UUID, limit int) ([]entity.PrivateMessage, error) {
	var messages []entity.PrivateMessage
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Preload("Sender").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkChatRead flags every unread message the reader received in the chat.
func (r *messageRepository) MarkChatRead(ctx context.Context, chatID, readerID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.PrivateMessage{}).
		Where("chat_id = ? AND sender_id <> ? AND is_read = ?", chatID, readerID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// IsBlocked reports whether either user blocked the other.
func (r *messageRepository) IsBlocked(ctx context.Context, a, b uuid.UUID) (bool, error) {
	low, high := entity.OrderedPair(a, b)
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Friendship{}).
		Where("pair_low = ? AND pair_high = ? AND status = ?", low, high, entity.FriendshipBlocked).
		Count(&count).Error
	return count > 0, err
}
