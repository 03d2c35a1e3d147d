package event

import (
	"time"

	"anoa.com/studyhub/internal/channel"
	"anoa.com/studyhub/internal/entity"
	"github.com/google/uuid"
)

// Actor identifies whoever caused a mutation, with what clients need to
// render them.
type Actor struct {
	ID        uuid.UUID
	Name      string
	AvatarURL string
}

func ActorOf(u *entity.User) Actor {
	return Actor{ID: u.ID, Name: u.DisplayName(), AvatarURL: u.Avatar()}
}

// MessageKind is where a message lives: GroupKind or PrivateKind.
type MessageKind interface {
	Channel() channel.Channel
	isMessageKind()
}

type GroupKind struct{ GroupID uuid.UUID }

func (k GroupKind) Channel() channel.Channel { return channel.Group(k.GroupID) }
func (GroupKind) isMessageKind()             {}

type PrivateKind struct{ ChatID uuid.UUID }

func (k PrivateKind) Channel() channel.Channel { return channel.PrivateChat(k.ChatID) }
func (PrivateKind) isMessageKind()             {}

// Mutation is a committed (or about to be committed) domain change that
// may notify users. The set of implementations is closed.
type Mutation interface {
	Source() Actor
	mutation()
}

type MessageSent struct {
	Actor     Actor
	Kind      MessageKind
	MessageID uuid.UUID
	ParentID  *uuid.UUID
	Content   string
	SentAt    time.Time
}

type MessageEdited struct {
	Actor     Actor
	GroupID   uuid.UUID
	MessageID uuid.UUID
	Content   string
}

type MessageDeleted struct {
	Actor     Actor
	GroupID   uuid.UUID
	MessageID uuid.UUID
}

type ChatRead struct {
	Actor  Actor
	ChatID uuid.UUID
	Count  int64
}

type ReactionToggled struct {
	Actor     Actor
	Kind      MessageKind
	MessageID uuid.UUID
	Emoji     string
	Added     bool
}

type FriendRequestSent struct {
	Actor        Actor
	FriendshipID uuid.UUID
	RecipientID  uuid.UUID
}

type FriendRequestAccepted struct {
	Actor        Actor
	FriendshipID uuid.UUID
	RequesterID  uuid.UUID
}

type JoinRequestSubmitted struct {
	Actor     Actor
	RequestID uuid.UUID
	GroupID   uuid.UUID
	GroupName string
	Message   string
}

type JoinRequestResolved struct {
	Actor     Actor
	RequestID uuid.UUID
	GroupID   uuid.UUID
	GroupName string
	Requester Actor
	Approved  bool
}

// MemberJoined is a join that bypassed review, through an invite link or
// code.
type MemberJoined struct {
	Actor     Actor
	GroupID   uuid.UUID
	GroupName string
	InviteID  uuid.UUID
}

type MemberLeft struct {
	Actor   Actor
	GroupID uuid.UUID
}

type MemberRemoved struct {
	Actor     Actor
	GroupID   uuid.UUID
	GroupName string
	Member    Actor
}

type RankChanged struct {
	Actor     Actor
	GroupID   uuid.UUID
	GroupName string
	Member    Actor
	Rank      entity.Rank
}

type GroupUpdated struct {
	Actor       Actor
	GroupID     uuid.UUID
	Name        string
	Description string
}

// GroupDeleted must be classified before the memberships are removed.
type GroupDeleted struct {
	Actor     Actor
	GroupID   uuid.UUID
	GroupName string
}

func (m MessageSent) Source() Actor           { return m.Actor }
func (m MessageEdited) Source() Actor         { return m.Actor }
func (m MessageDeleted) Source() Actor        { return m.Actor }
func (m ChatRead) Source() Actor              { return m.Actor }
func (m ReactionToggled) Source() Actor       { return m.Actor }
func (m FriendRequestSent) Source() Actor     { return m.Actor }
func (m FriendRequestAccepted) Source() Actor { return m.Actor }
func (m JoinRequestSubmitted) Source() Actor  { return m.Actor }
func (m JoinRequestResolved) Source() Actor   { return m.Actor }
func (m MemberJoined) Source() Actor          { return m.Actor }
func (m MemberLeft) Source() Actor            { return m.Actor }
func (m MemberRemoved) Source() Actor         { return m.Actor }
func (m RankChanged) Source() Actor           { return m.Actor }
func (m GroupUpdated) Source() Actor          { return m.Actor }
func (m GroupDeleted) Source() Actor          { return m.Actor }

func (MessageSent) mutation()           {}
func (MessageEdited) mutation()         {}
func (MessageDeleted) mutation()        {}
func (ChatRead) mutation()              {}
func (ReactionToggled) mutation()       {}
func (FriendRequestSent) mutation()     {}
func (FriendRequestAccepted) mutation() {}
func (JoinRequestSubmitted) mutation()  {}
func (JoinRequestResolved) mutation()   {}
func (MemberJoined) mutation()          {}
func (MemberLeft) mutation()            {}
func (MemberRemoved) mutation()         {}
func (RankChanged) mutation()           {}
func (GroupUpdated) mutation()          {}
func (GroupDeleted) mutation()          {}
