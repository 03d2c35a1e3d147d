package entity

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Rank string

const (
	RankMember  Rank = "member"
	RankEditor  Rank = "editor"
	RankAdmin   Rank = "admin"
	RankCreator Rank = "creator"
)

func (r Rank) Valid() bool {
	switch r {
	case RankMember, RankEditor, RankAdmin, RankCreator:
		return true
	}
	return false
}

// CanManage is true for admin and creator.
func (r Rank) CanManage() bool {
	return r == RankAdmin || r == RankCreator
}

// CanEdit is true for editor, admin and creator.
func (r Rank) CanEdit() bool {
	return r == RankEditor || r.CanManage()
}

type StudyGroup struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string    `gorm:"size:100;not null" json:"name"`
	Description    string    `gorm:"type:text" json:"description"`
	CreatorID      uuid.UUID `gorm:"type:uuid;not null;index" json:"creator_id"`
	Creator        *User     `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

func (g *StudyGroup) TableName() string {
	return "study_groups"
}

func (g *StudyGroup) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == uuid.Nil {
		g.ID, err = uuid.NewV7()
	}
	if g.LastActivityAt.IsZero() {
		g.LastActivityAt = time.Now().UTC()
	}
	return
}

type GroupMembership struct {
	ID       uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID   uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_membership_user_group,priority:1" json:"user_id"`
	GroupID  uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_membership_user_group,priority:2;index" json:"group_id"`
	User     *User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Group    *StudyGroup `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
	Rank     Rank        `gorm:"size:20;not null;default:member" json:"rank"`
	JoinedAt time.Time   `gorm:"autoCreateTime" json:"joined_at"`
}

func (m *GroupMembership) TableName() string {
	return "group_memberships"
}

func (m *GroupMembership) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID, err = uuid.NewV7()
	}
	return
}

type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestApproved JoinRequestStatus = "approved"
	JoinRequestRejected JoinRequestStatus = "rejected"
)

type JoinRequest struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_join_request_user_group,priority:1" json:"user_id"`
	GroupID    uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_join_request_user_group,priority:2;index" json:"group_id"`
	User       *User             `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Group      *StudyGroup       `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"group,omitempty"`
	Message    string            `gorm:"type:text" json:"message"`
	Status     JoinRequestStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	ReviewerID *uuid.UUID        `gorm:"type:uuid" json:"reviewer_id,omitempty"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
	ResolvedAt *time.Time        `json:"resolved_at,omitempty"`
}

func (r *JoinRequest) TableName() string {
	return "join_requests"
}

func (r *JoinRequest) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID, err = uuid.NewV7()
	}
	return
}

// inviteAlphabet leaves out characters that are easy to misread.
const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const InviteCodeLen = 8

// GroupInvite lets anyone holding its token or code join the group without
// a join request. A nil MaxUses or ExpiresAt means no limit.
type GroupInvite struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID     uuid.UUID   `gorm:"type:uuid;not null;index" json:"group_id"`
	Group       *StudyGroup `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedByID uuid.UUID   `gorm:"type:uuid;not null" json:"created_by_id"`
	CreatedBy   *User       `gorm:"foreignKey:CreatedByID;constraint:OnDelete:CASCADE" json:"created_by,omitempty"`
	Token       uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex" json:"token"`
	Code        string      `gorm:"size:16;not null;uniqueIndex" json:"code"`
	IsActive    bool        `gorm:"not null;default:true" json:"is_active"`
	MaxUses     *int        `json:"max_uses,omitempty"`
	UseCount    int         `gorm:"not null;default:0" json:"use_count"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

func (i *GroupInvite) TableName() string {
	return "group_invites"
}

func (i *GroupInvite) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == uuid.Nil {
		if i.ID, err = uuid.NewV7(); err != nil {
			return err
		}
	}
	if i.Token == uuid.Nil {
		i.Token = uuid.New()
	}
	if i.Code == "" {
		i.Code, err = NewInviteCode()
	}
	return
}

// Usable reports whether the invite still admits new members at now.
func (i *GroupInvite) Usable(now time.Time) bool {
	if !i.IsActive {
		return false
	}
	if i.ExpiresAt != nil && !now.Before(*i.ExpiresAt) {
		return false
	}
	return i.MaxUses == nil || i.UseCount < *i.MaxUses
}

func NewInviteCode() (string, error) {
	buf := make([]byte, InviteCodeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for n, b := range buf {
		buf[n] = inviteAlphabet[int(b)%len(inviteAlphabet)]
	}
	return string(buf), nil
}
