package dto

import (
	"time"

	"anoa.com/studyhub/internal/entity"
	"github.com/google/uuid"
)

type ListNotificationsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

type MarkReadRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1,max=100"`
}

type ActorResponse struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
}

type NotificationResponse struct {
	ID        uuid.UUID               `json:"id"`
	Type      entity.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	IsRead    bool                    `json:"is_read"`
	CreatedAt time.Time               `json:"created_at"`
	ReadAt    *time.Time              `json:"read_at,omitempty"`
	ActionURL string                  `json:"action_url,omitempty"`
	Actor     *ActorResponse          `json:"actor,omitempty"`
	GroupID   *uuid.UUID              `json:"group_id,omitempty"`
	ChatID    *uuid.UUID              `json:"chat_id,omitempty"`
	Data      map[string]any          `json:"data,omitempty"`
}

func NewNotificationResponse(n entity.Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
		ReadAt:    n.ReadAt,
		ActionURL: n.ActionURL,
		GroupID:   n.GroupID,
		ChatID:    n.ChatID,
		Data:      n.Data,
	}
	if n.Actor != nil {
		resp.Actor = &ActorResponse{
			ID:          n.Actor.ID,
			DisplayName: n.Actor.DisplayName(),
			AvatarURL:   n.Actor.Avatar(),
		}
	}
	return resp
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}
