package dto

import (
	"time"

	"anoa.com/studyhub/internal/entity"
	"github.com/google/uuid"
)

type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required,min=3,max=100"`
	Description string `json:"description" binding:"max=1000"`
}

// EditGroupRequest leaves a field untouched when it is omitted.
type EditGroupRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=3,max=100"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
}

type CreateInviteRequest struct {
	MaxUses        *int `json:"max_uses" binding:"omitempty,min=1,max=1000"`
	ExpiresInHours *int `json:"expires_in_hours" binding:"omitempty,min=1,max=720"`
}

type JoinByCodeRequest struct {
	Code string `json:"code" binding:"required,min=4,max=16"`
}

type JoinGroupRequest struct {
	Message string `json:"message" binding:"max=500"`
}

type SetRankRequest struct {
	Rank entity.Rank `json:"rank" binding:"required,oneof=member editor admin"`
}

type UserSummary struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
}

func newUserSummary(u *entity.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName(),
		AvatarURL:   u.Avatar(),
	}
}

type GroupResponse struct {
	ID             uuid.UUID    `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	CreatorID      uuid.UUID    `json:"creator_id"`
	Creator        *UserSummary `json:"creator,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	LastActivityAt time.Time    `json:"last_activity_at"`
}

func NewGroupResponse(g *entity.StudyGroup) GroupResponse {
	return GroupResponse{
		ID:             g.ID,
		Name:           g.Name,
		Description:    g.Description,
		CreatorID:      g.CreatorID,
		Creator:        newUserSummary(g.Creator),
		CreatedAt:      g.CreatedAt,
		LastActivityAt: g.LastActivityAt,
	}
}

type MemberResponse struct {
	User     *UserSummary `json:"user"`
	Rank     entity.Rank  `json:"rank"`
	JoinedAt time.Time    `json:"joined_at"`
}

func NewMemberResponse(m *entity.GroupMembership) MemberResponse {
	return MemberResponse{User: newUserSummary(m.User), Rank: m.Rank, JoinedAt: m.JoinedAt}
}

type JoinRequestResponse struct {
	ID         uuid.UUID                `json:"id"`
	GroupID    uuid.UUID                `json:"group_id"`
	User       *UserSummary             `json:"user,omitempty"`
	Message    string                   `json:"message"`
	Status     entity.JoinRequestStatus `json:"status"`
	CreatedAt  time.Time                `json:"created_at"`
	ResolvedAt *time.Time               `json:"resolved_at,omitempty"`
}

func NewJoinRequestResponse(r *entity.JoinRequest) JoinRequestResponse {
	return JoinRequestResponse{
		ID:         r.ID,
		GroupID:    r.GroupID,
		User:       newUserSummary(r.User),
		Message:    r.Message,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
		ResolvedAt: r.ResolvedAt,
	}
}

type InviteResponse struct {
	ID        uuid.UUID    `json:"id"`
	GroupID   uuid.UUID    `json:"group_id"`
	Token     uuid.UUID    `json:"token"`
	Code      string       `json:"code"`
	Link      string       `json:"link"`
	CreatedBy *UserSummary `json:"created_by,omitempty"`
	IsActive  bool         `json:"is_active"`
	MaxUses   *int         `json:"max_uses,omitempty"`
	UseCount  int          `json:"use_count"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

func NewInviteResponse(i *entity.GroupInvite) InviteResponse {
	return InviteResponse{
		ID:        i.ID,
		GroupID:   i.GroupID,
		Token:     i.Token,
		Code:      i.Code,
		Link:      "/invite/" + i.Token.String(),
		CreatedBy: newUserSummary(i.CreatedBy),
		IsActive:  i.IsActive,
		MaxUses:   i.MaxUses,
		UseCount:  i.UseCount,
		ExpiresAt: i.ExpiresAt,
		CreatedAt: i.CreatedAt,
	}
}
