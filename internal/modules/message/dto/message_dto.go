package dto

import (
	"time"

	"anoa.com/studyhub/internal/entity"
	"github.com/google/uuid"
)

type SendMessageRequest struct {
	Content  string     `json:"content" binding:"required,min=1,max=4000"`
	ParentID *uuid.UUID `json:"parent_id"`
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required,min=1,max=4000"`
}

type ListMessagesQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

type SenderResponse struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
}

type MessageResponse struct {
	ID        uuid.UUID       `json:"id"`
	GroupID   *uuid.UUID      `json:"group_id,omitempty"`
	ChatID    *uuid.UUID      `json:"chat_id,omitempty"`
	ParentID  *uuid.UUID      `json:"parent_id,omitempty"`
	Content   string          `json:"content"`
	Edited    bool            `json:"edited"`
	IsRead    *bool           `json:"is_read,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Sender    *SenderResponse `json:"sender,omitempty"`
}

func newSender(u *entity.User) *SenderResponse {
	if u == nil {
		return nil
	}
	return &SenderResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName(),
		AvatarURL:   u.Avatar(),
	}
}

func NewGroupMessageResponse(m *entity.GroupMessage) MessageResponse {
	groupID := m.GroupID
	return MessageResponse{
		ID:        m.ID,
		GroupID:   &groupID,
		ParentID:  m.ParentID,
		Content:   m.Content,
		Edited:    m.Edited,
		CreatedAt: m.CreatedAt,
		Sender:    newSender(m.Sender),
	}
}

func NewPrivateMessageResponse(m *entity.PrivateMessage) MessageResponse {
	chatID := m.ChatID
	isRead := m.IsRead
	return MessageResponse{
		ID:        m.ID,
		ChatID:    &chatID,
		ParentID:  m.ParentID,
		Content:   m.Content,
		Edited:    m.Edited,
		IsRead:    &isRead,
		CreatedAt: m.CreatedAt,
		Sender:    newSender(m.Sender),
	}
}

type ChatResponse struct {
	ID        uuid.UUID `json:"id"`
	OtherUser uuid.UUID `json:"other_user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type MarkChatReadResponse struct {
	Updated int64 `json:"updated"`
}
