package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipDeclined FriendshipStatus = "declined"
	FriendshipBlocked  FriendshipStatus = "blocked"
)

// Friendship holds one row per unordered pair. FromUserID is the requester,
// or the blocker once Status is blocked.
type Friendship struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	FromUserID uuid.UUID        `gorm:"type:uuid;not null;index" json:"from_user_id"`
	ToUserID   uuid.UUID        `gorm:"type:uuid;not null;index:idx_friendship_to_status,priority:1" json:"to_user_id"`
	FromUser   *User            `gorm:"foreignKey:FromUserID;constraint:OnDelete:CASCADE" json:"from_user,omitempty"`
	ToUser     *User            `gorm:"foreignKey:ToUserID;constraint:OnDelete:CASCADE" json:"to_user,omitempty"`
	PairLow    uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_friendship_pair,priority:1" json:"-"`
	PairHigh   uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_friendship_pair,priority:2" json:"-"`
	Status     FriendshipStatus `gorm:"size:20;not null;default:pending;index:idx_friendship_to_status,priority:2" json:"status"`
	CreatedAt  time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (f *Friendship) TableName() string {
	return "friendships"
}

func (f *Friendship) BeforeCreate(tx *gorm.DB) (err error) {
	if f.ID == uuid.Nil {
		f.ID, err = uuid.NewV7()
	}
	f.PairLow, f.PairHigh = OrderedPair(f.FromUserID, f.ToUserID)
	return
}
