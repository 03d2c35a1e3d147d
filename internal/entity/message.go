package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GroupMessage is append-only apart from the edited content. ParentID may
// only point at a message already stored in the same group.
type GroupMessage struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID   uuid.UUID   `gorm:"type:uuid;not null;index:idx_group_messages_group_created,priority:1" json:"group_id"`
	Group     *StudyGroup `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
	SenderID  uuid.UUID   `gorm:"type:uuid;not null;index" json:"sender_id"`
	Sender    *User       `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"sender,omitempty"`
	ParentID  *uuid.UUID  `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Content   string      `gorm:"type:text;not null" json:"content"`
	Edited    bool        `gorm:"not null;default:false" json:"edited"`
	CreatedAt time.Time   `gorm:"autoCreateTime;index:idx_group_messages_group_created,priority:2" json:"created_at"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m *GroupMessage) TableName() string {
	return "group_messages"
}

func (m *GroupMessage) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID, err = uuid.NewV7()
	}
	return
}
