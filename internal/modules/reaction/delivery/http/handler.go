package handler

import (
	"net/http"

	"anoa.com/studyhub/internal/entity"
	reactionDto "anoa.com/studyhub/internal/modules/reaction/dto"
	reaction "anoa.com/studyhub/internal/modules/reaction/service"
	"anoa.com/studyhub/pkg/apperror"
	"anoa.com/studyhub/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ReactionHandler struct {
	service reaction.ReactionService
}

func NewReactionHandler(service reaction.ReactionService) *ReactionHandler {
	return &ReactionHandler{service: service}
}

func (h *ReactionHandler) ToggleReaction(c *gin.Context) {
	var req reactionDto.ReactionToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.service.Toggle(c.Request.Context(), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ReactionHandler) GetReactions(c *gin.Context) {
	var query reactionDto.ReactionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	target, err := entity.NewMessageRef(entity.TargetKind(query.TargetKind), uuid.MustParse(query.TargetID))
	if err != nil {
		response.ResponseError(c, apperror.Invalid(err.Error()))
		return
	}

	res, err := h.service.GetReactions(c.Request.Context(), userID, target)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
