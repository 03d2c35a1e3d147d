package dto

import "github.com/google/uuid"

type ReactionToggleRequest struct {
	TargetKind string    `json:"target_kind" binding:"required,oneof=group_message private_message"`
	TargetID   uuid.UUID `json:"target_id" binding:"required"`
	Emoji      string    `json:"emoji" binding:"required,min=1,max=16"`
}

type ReactionsQuery struct {
	TargetKind string `form:"target_kind" binding:"required,oneof=group_message private_message"`
	TargetID   string `form:"target_id" binding:"required,uuid"`
}

type ToggleResponse struct {
	Emoji string `json:"emoji"`
	Added bool   `json:"added"`
}

type ReactionsResponse struct {
	Counts        map[string]int64 `json:"counts"`
	UserReactions []string         `json:"user_reactions"`
}
