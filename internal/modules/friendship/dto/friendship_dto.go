package dto

import (
	"time"

	"anoa.com/studyhub/internal/entity"
	"github.com/google/uuid"
)

type FriendRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type FriendUserResponse struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
}

type FriendshipResponse struct {
	ID        uuid.UUID               `json:"id"`
	Status    entity.FriendshipStatus `json:"status"`
	User      *FriendUserResponse     `json:"user,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// NewFriendshipResponse renders f from viewer's side: User is the other
// person.
func NewFriendshipResponse(f *entity.Friendship, viewer uuid.UUID) FriendshipResponse {
	other := f.ToUser
	if f.ToUserID == viewer {
		other = f.FromUser
	}

	res := FriendshipResponse{
		ID:        f.ID,
		Status:    f.Status,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
	if other != nil {
		res.User = &FriendUserResponse{
			ID:          other.ID,
			Username:    other.Username,
			DisplayName: other.DisplayName(),
			AvatarURL:   other.Avatar(),
		}
	}
	return res
}
