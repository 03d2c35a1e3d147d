package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PrivateChat stores its two participants ordered so the unordered pair
// maps to exactly one row.
type PrivateChat struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ParticipantLow  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_private_chat_pair,priority:1" json:"participant_low"`
	ParticipantHigh uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_private_chat_pair,priority:2;index" json:"participant_high"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (c *PrivateChat) TableName() string {
	return "private_chats"
}

func (c *PrivateChat) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID, err = uuid.NewV7()
	}
	return
}

func (c *PrivateChat) HasParticipant(userID uuid.UUID) bool {
	return c.ParticipantLow == userID || c.ParticipantHigh == userID
}

// Other returns the participant that is not userID.
func (c *PrivateChat) Other(userID uuid.UUID) uuid.UUID {
	if c.ParticipantLow == userID {
		return c.ParticipantHigh
	}
	return c.ParticipantLow
}

// OrderedPair returns a and b sorted by their byte representation.
func OrderedPair(a, b uuid.UUID) (low, high uuid.UUID) {
	if a.String() < b.String() {
		return a, b
	}
	return b, a
}

type PrivateMessage struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	ChatID    uuid.UUID    `gorm:"type:uuid;not null;index:idx_private_messages_chat_created,priority:1" json:"chat_id"`
	Chat      *PrivateChat `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
	SenderID  uuid.UUID    `gorm:"type:uuid;not null;index" json:"sender_id"`
	Sender    *User        `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"sender,omitempty"`
	ParentID  *uuid.UUID   `gorm:"type:uuid" json:"parent_id,omitempty"`
	Content   string       `gorm:"type:text;not null" json:"content"`
	Edited    bool         `gorm:"not null;default:false" json:"edited"`
	IsRead    bool         `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt time.Time    `gorm:"autoCreateTime;index:idx_private_messages_chat_created,priority:2" json:"created_at"`
}

func (m *PrivateMessage) TableName() string {
	return "private_messages"
}

func (m *PrivateMessage) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID, err = uuid.NewV7()
	}
	return
}
