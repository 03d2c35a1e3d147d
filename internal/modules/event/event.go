package event

import (
	"anoa.com/studyhub/internal/broadcast"
	"anoa.com/studyhub/internal/channel"
	"anoa.com/studyhub/internal/entity"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Event names as seen by subscribers.
const (
	NameNewMessage      = "new-message"
	NameMessageEdited   = "message-edited"
	NameMessageDeleted  = "message-deleted"
	NameMessagesRead    = "messages-read"
	NameReactionAdded   = "reaction-added"
	NameReactionRemoved = "reaction-removed"
	NameNotification    = "notification"
	NameMemberJoined    = "member-joined"
	NameMemberLeft      = "member-left"
	NameMemberRemoved   = "member-removed"
	NameMemberUpdated   = "member-updated"
	NameGroupUpdated    = "group-updated"
	NameGroupDeleted    = "group-deleted"
)

// NotificationEvent describes one delivery: where it goes, who should hear
// about it and, for persisted events, the record to store per recipient.
type NotificationEvent struct {
	Channel    channel.Channel
	Name       string
	Payload    broadcast.Payload
	Recipients []uuid.UUID

	Persist   bool
	Type      entity.NotificationType
	Title     string
	Message   string
	ActionURL string
	ActorID   *uuid.UUID
	GroupID   *uuid.UUID
	ChatID    *uuid.UUID
}

// Records builds one unsaved notification per recipient.
func (e NotificationEvent) Records() []*entity.Notification {
	if !e.Persist {
		return nil
	}
	var data datatypes.JSONMap
	if len(e.Payload) > 0 {
		data = datatypes.JSONMap(e.Payload)
	}
	out := make([]*entity.Notification, 0, len(e.Recipients))
	for _, r := range e.Recipients {
		out = append(out, &entity.Notification{
			RecipientID: r,
			Type:        e.Type,
			Title:       e.Title,
			Message:     e.Message,
			ActionURL:   e.ActionURL,
			ActorID:     e.ActorID,
			GroupID:     e.GroupID,
			ChatID:      e.ChatID,
			Data:        data,
		})
	}
	return out
}
