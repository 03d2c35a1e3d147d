package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TargetKind string

const (
	TargetGroupMessage   TargetKind = "group_message"
	TargetPrivateMessage TargetKind = "private_message"
)

// MessageRef is the message a reaction points at. Only GroupMessageRef
// and PrivateMessageRef implement it.
type MessageRef interface {
	Kind() TargetKind
	MessageID() uuid.UUID
	isMessageRef()
}

type GroupMessageRef struct{ ID uuid.UUID }

func (r GroupMessageRef) Kind() TargetKind     { return TargetGroupMessage }
func (r GroupMessageRef) MessageID() uuid.UUID { return r.ID }
func (GroupMessageRef) isMessageRef()          {}

type PrivateMessageRef struct{ ID uuid.UUID }

func (r PrivateMessageRef) Kind() TargetKind     { return TargetPrivateMessage }
func (r PrivateMessageRef) MessageID() uuid.UUID { return r.ID }
func (PrivateMessageRef) isMessageRef()          {}

// NewMessageRef resolves the wire form (kind, id) into a MessageRef.
func NewMessageRef(kind TargetKind, id uuid.UUID) (MessageRef, error) {
	switch kind {
	case TargetGroupMessage:
		return GroupMessageRef{ID: id}, nil
	case TargetPrivateMessage:
		return PrivateMessageRef{ID: id}, nil
	}
	return nil, fmt.Errorf("unknown reaction target kind %q", kind)
}

type Reaction struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_reactions_unique,priority:1" json:"user_id"`
	User       *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	TargetKind TargetKind `gorm:"size:20;not null;uniqueIndex:idx_reactions_unique,priority:2;index:idx_reactions_lookup,priority:1" json:"target_kind"`
	TargetID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_reactions_unique,priority:3;index:idx_reactions_lookup,priority:2" json:"target_id"`
	Emoji      string     `gorm:"size:16;not null;uniqueIndex:idx_reactions_unique,priority:4" json:"emoji"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func NewReaction(userID uuid.UUID, target MessageRef, emoji string) *Reaction {
	return &Reaction{
		UserID:     userID,
		TargetKind: target.Kind(),
		TargetID:   target.MessageID(),
		Emoji:      emoji,
	}
}

func (r *Reaction) TableName() string {
	return "reactions"
}

func (r *Reaction) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID, err = uuid.NewV7()
	}
	return
}

// Target rebuilds the typed reference from the stored columns.
func (r *Reaction) Target() (MessageRef, error) {
	return NewMessageRef(r.TargetKind, r.TargetID)
}
