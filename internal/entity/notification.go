package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationPrivateMessage    NotificationType = "private_message"
	NotificationFriendRequest     NotificationType = "friend_request"
	NotificationFriendAccepted    NotificationType = "friend_accepted"
	NotificationGroupJoinRequest  NotificationType = "group_join_request"
	NotificationGroupJoinApproved NotificationType = "group_join_approved"
	NotificationGroupJoinRejected NotificationType = "group_join_rejected"
	NotificationMemberRemoved     NotificationType = "group_member_removed"
	NotificationRankChanged       NotificationType = "group_rank_changed"
)

// Notification is the durable per-recipient record. After insert only the
// read state changes.
type Notification struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID uuid.UUID        `gorm:"type:uuid;not null;index:idx_notifications_recipient,priority:1" json:"recipient_id"`
	Recipient   *User            `gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE" json:"-"`
	Type        NotificationType `gorm:"size:40;not null" json:"type"`
	Title       string           `gorm:"size:200;not null" json:"title"`
	Message     string           `gorm:"type:text" json:"message"`
	IsRead      bool             `gorm:"not null;default:false;index:idx_notifications_recipient,priority:2" json:"is_read"`
	CreatedAt   time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`

	ActorID   *uuid.UUID   `gorm:"type:uuid" json:"actor_id,omitempty"`
	Actor     *User        `gorm:"foreignKey:ActorID;constraint:OnDelete:SET NULL" json:"actor,omitempty"`
	GroupID   *uuid.UUID   `gorm:"type:uuid;index" json:"group_id,omitempty"`
	Group     *StudyGroup  `gorm:"foreignKey:GroupID;constraint:OnDelete:SET NULL" json:"-"`
	ChatID    *uuid.UUID   `gorm:"type:uuid" json:"chat_id,omitempty"`
	Chat      *PrivateChat `gorm:"foreignKey:ChatID;constraint:OnDelete:SET NULL" json:"-"`
	ActionURL string       `gorm:"type:text" json:"action_url,omitempty"`
	// Data is the event payload the live broadcast carried.
	Data datatypes.JSONMap `json:"data,omitempty"`
}

func (n *Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == uuid.Nil {
		n.ID, err = uuid.NewV7()
	}
	return
}
