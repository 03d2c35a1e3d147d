package dto

import (
	"time"

	"github.com/google/uuid"
)

type FeedQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=50"`
}

type ActivityActor struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
}

type ActivityItem struct {
	Type      string        `json:"type"`
	Icon      string        `json:"icon"`
	Color     string        `json:"color"`
	Title     string        `json:"title"`
	Preview   string        `json:"preview"`
	Timestamp time.Time     `json:"timestamp"`
	URL       string        `json:"url"`
	Actor     ActivityActor `json:"actor"`
}
