package event

import (
	"context"
	"fmt"
	"time"

	"anoa.com/studyhub/internal/broadcast"
	"anoa.com/studyhub/internal/channel"
	"anoa.com/studyhub/internal/entity"
	"anoa.com/studyhub/pkg/textutil"
	"github.com/google/uuid"
)

const (
	messagePreviewLen = 80
	joinMessageLen    = 60
)

// Directory resolves the relationship sets recipients are drawn from.
type Directory interface {
	GroupMemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)
	GroupAdminIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)
	ChatParticipants(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error)
}

type Classifier struct {
	dir Directory
}

func NewClassifier(dir Directory) *Classifier {
	return &Classifier{dir: dir}
}

// Classify maps a mutation to the events it produces. The actor is removed
// from every recipient list; persisted events left without recipients are
// dropped while transient ones are kept.
func (c *Classifier) Classify(ctx context.Context, m Mutation) ([]NotificationEvent, error) {
	events, err := c.classify(ctx, m)
	if err != nil {
		return nil, err
	}

	actor := m.Source().ID
	out := events[:0]
	for _, ev := range events {
		ev.Recipients = without(ev.Recipients, actor)
		if ev.Persist && len(ev.Recipients) == 0 {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (c *Classifier) classify(ctx context.Context, m Mutation) ([]NotificationEvent, error) {
	switch m := m.(type) {
	case MessageSent:
		return c.messageSent(ctx, m)
	case MessageEdited:
		return c.groupBroadcast(ctx, m.GroupID, NameMessageEdited, broadcast.Payload{
			"message_id": m.MessageID.String(),
			"group_id":   m.GroupID.String(),
			"content":    m.Content,
			"edited":     true,
			"actor_id":   m.Actor.ID.String(),
		})
	case MessageDeleted:
		return c.groupBroadcast(ctx, m.GroupID, NameMessageDeleted, broadcast.Payload{
			"message_id": m.MessageID.String(),
			"group_id":   m.GroupID.String(),
			"actor_id":   m.Actor.ID.String(),
		})
	case ChatRead:
		participants, err := c.dir.ChatParticipants(ctx, m.ChatID)
		if err != nil {
			return nil, err
		}
		return []NotificationEvent{{
			Channel:    channel.PrivateChat(m.ChatID),
			Name:       NameMessagesRead,
			Recipients: participants,
			Payload: broadcast.Payload{
				"chat_id":   m.ChatID.String(),
				"reader_id": m.Actor.ID.String(),
				"count":     m.Count,
			},
		}}, nil
	case ReactionToggled:
		return c.reactionToggled(ctx, m)
	case FriendRequestSent:
		return []NotificationEvent{personal(m.RecipientID, m.Actor, record{
			kind:      entity.NotificationFriendRequest,
			title:     "New friend request",
			message:   fmt.Sprintf("%s sent you a friend request", m.Actor.Name),
			actionURL: "/friends",
		}, broadcast.Payload{"friendship_id": m.FriendshipID.String()})}, nil
	case FriendRequestAccepted:
		return []NotificationEvent{personal(m.RequesterID, m.Actor, record{
			kind:      entity.NotificationFriendAccepted,
			title:     "Friend request accepted",
			message:   fmt.Sprintf("%s accepted your friend request", m.Actor.Name),
			actionURL: "/friends",
		}, broadcast.Payload{"friendship_id": m.FriendshipID.String()})}, nil
	case JoinRequestSubmitted:
		return c.joinRequestSubmitted(ctx, m)
	case JoinRequestResolved:
		return c.joinRequestResolved(ctx, m)
	case MemberJoined:
		return c.groupBroadcast(ctx, m.GroupID, NameMemberJoined, broadcast.Payload{
			"group_id":    m.GroupID.String(),
			"user_id":     m.Actor.ID.String(),
			"user_name":   m.Actor.Name,
			"user_avatar": m.Actor.AvatarURL,
			"invite_id":   m.InviteID.String(),
		})
	case MemberLeft:
		return c.groupBroadcast(ctx, m.GroupID, NameMemberLeft, broadcast.Payload{
			"group_id":  m.GroupID.String(),
			"user_id":   m.Actor.ID.String(),
			"user_name": m.Actor.Name,
		})
	case MemberRemoved:
		return c.memberRemoved(ctx, m)
	case RankChanged:
		return c.rankChanged(ctx, m)
	case GroupUpdated:
		return c.groupBroadcast(ctx, m.GroupID, NameGroupUpdated, broadcast.Payload{
			"group_id":    m.GroupID.String(),
			"name":        m.Name,
			"description": m.Description,
			"actor_id":    m.Actor.ID.String(),
		})
	case GroupDeleted:
		return c.groupBroadcast(ctx, m.GroupID, NameGroupDeleted, broadcast.Payload{
			"group_id":   m.GroupID.String(),
			"group_name": m.GroupName,
			"actor_id":   m.Actor.ID.String(),
		})
	}
	return nil, fmt.Errorf("unclassified mutation %T", m)
}

func (c *Classifier) messageSent(ctx context.Context, m MessageSent) ([]NotificationEvent, error) {
	payload := broadcast.Payload{
		"message_id":    m.MessageID.String(),
		"sender_id":     m.Actor.ID.String(),
		"sender_name":   m.Actor.Name,
		"sender_avatar": m.Actor.AvatarURL,
		"content":       m.Content,
		"parent_id":     optionalID(m.ParentID),
		"created_at":    m.SentAt.UTC().Format(time.RFC3339Nano),
	}

	switch kind := m.Kind.(type) {
	case GroupKind:
		payload["group_id"] = kind.GroupID.String()
		members, err := c.dir.GroupMemberIDs(ctx, kind.GroupID)
		if err != nil {
			return nil, err
		}
		return []NotificationEvent{{
			Channel:    kind.Channel(),
			Name:       NameNewMessage,
			Payload:    payload,
			Recipients: members,
		}}, nil

	case PrivateKind:
		payload["chat_id"] = kind.ChatID.String()
		participants, err := c.dir.ChatParticipants(ctx, kind.ChatID)
		if err != nil {
			return nil, err
		}
		events := []NotificationEvent{{
			Channel:    kind.Channel(),
			Name:       NameNewMessage,
			Payload:    payload,
			Recipients: participants,
		}}
		chatID := kind.ChatID
		for _, recipient := range without(participants, m.Actor.ID) {
			ev := personal(recipient, m.Actor, record{
				kind:      entity.NotificationPrivateMessage,
				title:     fmt.Sprintf("New message from %s", m.Actor.Name),
				message:   textutil.Preview(m.Content, messagePreviewLen),
				actionURL: ChatURL(chatID),
			}, broadcast.Payload{
				"chat_id":    chatID.String(),
				"message_id": m.MessageID.String(),
			})
			ev.ChatID = &chatID
			events = append(events, ev)
		}
		return events, nil
	}
	return nil, fmt.Errorf("unknown message kind %T", m.Kind)
}

func (c *Classifier) reactionToggled(ctx context.Context, m ReactionToggled) ([]NotificationEvent, error) {
	name := NameReactionRemoved
	if m.Added {
		name = NameReactionAdded
	}
	payload := broadcast.Payload{
		"message_id": m.MessageID.String(),
		"emoji":      m.Emoji,
		"user_id":    m.Actor.ID.String(),
		"user_name":  m.Actor.Name,
	}

	var readers []uuid.UUID
	var err error
	switch kind := m.Kind.(type) {
	case GroupKind:
		payload["target_kind"] = string(entity.TargetGroupMessage)
		readers, err = c.dir.GroupMemberIDs(ctx, kind.GroupID)
	case PrivateKind:
		payload["target_kind"] = string(entity.TargetPrivateMessage)
		readers, err = c.dir.ChatParticipants(ctx, kind.ChatID)
	default:
		return nil, fmt.Errorf("unknown message kind %T", m.Kind)
	}
	if err != nil {
		return nil, err
	}

	return []NotificationEvent{{
		Channel:    m.Kind.Channel(),
		Name:       name,
		Payload:    payload,
		Recipients: readers,
	}}, nil
}

func (c *Classifier) joinRequestSubmitted(ctx context.Context, m JoinRequestSubmitted) ([]NotificationEvent, error) {
	admins, err := c.dir.GroupAdminIDs(ctx, m.GroupID)
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("%s wants to join %s", m.Actor.Name, m.GroupName)
	if preview := textutil.Preview(m.Message, joinMessageLen); preview != "" {
		msg += ": " + preview
	}

	groupID := m.GroupID
	events := make([]NotificationEvent, 0, len(admins))
	for _, admin := range admins {
		ev := personal(admin, m.Actor, record{
			kind:      entity.NotificationGroupJoinRequest,
			title:     "New join request",
			message:   msg,
			actionURL: JoinRequestsURL,
		}, broadcast.Payload{
			"request_id": m.RequestID.String(),
			"group_id":   groupID.String(),
		})
		ev.GroupID = &groupID
		events = append(events, ev)
	}
	return events, nil
}

func (c *Classifier) joinRequestResolved(ctx context.Context, m JoinRequestResolved) ([]NotificationEvent, error) {
	groupID := m.GroupID
	rec := record{
		kind:      entity.NotificationGroupJoinRejected,
		title:     "Join request rejected",
		message:   fmt.Sprintf("Your request to join %s was rejected", m.GroupName),
		actionURL: "/groups",
	}
	if m.Approved {
		rec = record{
			kind:      entity.NotificationGroupJoinApproved,
			title:     "Join request approved",
			message:   fmt.Sprintf("You are now a member of %s", m.GroupName),
			actionURL: GroupURL(groupID),
		}
	}

	ev := personal(m.Requester.ID, m.Actor, rec, broadcast.Payload{
		"request_id": m.RequestID.String(),
		"group_id":   groupID.String(),
	})
	ev.GroupID = &groupID
	events := []NotificationEvent{ev}

	if m.Approved {
		joined, err := c.groupBroadcast(ctx, groupID, NameMemberJoined, broadcast.Payload{
			"group_id":    groupID.String(),
			"user_id":     m.Requester.ID.String(),
			"user_name":   m.Requester.Name,
			"user_avatar": m.Requester.AvatarURL,
		})
		if err != nil {
			return nil, err
		}
		// The new member learns about joining from the personal event.
		joined[0].Recipients = without(joined[0].Recipients, m.Requester.ID)
		events = append(events, joined...)
	}
	return events, nil
}

func (c *Classifier) memberRemoved(ctx context.Context, m MemberRemoved) ([]NotificationEvent, error) {
	groupID := m.GroupID
	ev := personal(m.Member.ID, m.Actor, record{
		kind:      entity.NotificationMemberRemoved,
		title:     "Removed from group",
		message:   fmt.Sprintf("You were removed from %s", m.GroupName),
		actionURL: "/groups",
	}, broadcast.Payload{"group_id": groupID.String()})
	ev.GroupID = &groupID

	rest, err := c.groupBroadcast(ctx, groupID, NameMemberRemoved, broadcast.Payload{
		"group_id":  groupID.String(),
		"user_id":   m.Member.ID.String(),
		"user_name": m.Member.Name,
	})
	if err != nil {
		return nil, err
	}
	return append([]NotificationEvent{ev}, rest...), nil
}

func (c *Classifier) rankChanged(ctx context.Context, m RankChanged) ([]NotificationEvent, error) {
	groupID := m.GroupID
	ev := personal(m.Member.ID, m.Actor, record{
		kind:      entity.NotificationRankChanged,
		title:     "Group role updated",
		message:   fmt.Sprintf("You are now %s in %s", m.Rank, m.GroupName),
		actionURL: GroupURL(groupID),
	}, broadcast.Payload{"group_id": groupID.String(), "rank": string(m.Rank)})
	ev.GroupID = &groupID

	rest, err := c.groupBroadcast(ctx, groupID, NameMemberUpdated, broadcast.Payload{
		"group_id":  groupID.String(),
		"user_id":   m.Member.ID.String(),
		"user_name": m.Member.Name,
		"rank":      string(m.Rank),
	})
	if err != nil {
		return nil, err
	}
	return append([]NotificationEvent{ev}, rest...), nil
}

// groupBroadcast is a single transient event on the group channel,
// addressed to the current members.
func (c *Classifier) groupBroadcast(ctx context.Context, groupID uuid.UUID, name string, payload broadcast.Payload) ([]NotificationEvent, error) {
	members, err := c.dir.GroupMemberIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return []NotificationEvent{{
		Channel:    channel.Group(groupID),
		Name:       name,
		Payload:    payload,
		Recipients: members,
	}}, nil
}

type record struct {
	kind      entity.NotificationType
	title     string
	message   string
	actionURL string
}

// personal builds a persisted event on the recipient's own channel.
func personal(recipient uuid.UUID, actor Actor, rec record, extra broadcast.Payload) NotificationEvent {
	actorID := actor.ID
	payload := broadcast.Payload{
		"type":         string(rec.kind),
		"title":        rec.title,
		"message":      rec.message,
		"action_url":   rec.actionURL,
		"actor_id":     actorID.String(),
		"actor_name":   actor.Name,
		"actor_avatar": actor.AvatarURL,
	}
	for k, v := range extra {
		payload[k] = v
	}
	return NotificationEvent{
		Channel:    channel.User(recipient),
		Name:       NameNotification,
		Payload:    payload,
		Recipients: []uuid.UUID{recipient},
		Persist:    true,
		Type:       rec.kind,
		Title:      rec.title,
		Message:    rec.message,
		ActionURL:  rec.actionURL,
		ActorID:    &actorID,
	}
}

func without(ids []uuid.UUID, drop uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

func optionalID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
