package handler

import (
	"context"
	"net/http"

	"anoa.com/studyhub/internal/entity"
	friendDto "anoa.com/studyhub/internal/modules/friendship/dto"
	friendship "anoa.com/studyhub/internal/modules/friendship/service"
	"anoa.com/studyhub/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type FriendshipHandler struct {
	service friendship.FriendshipService
}

func NewFriendshipHandler(service friendship.FriendshipService) *FriendshipHandler {
	return &FriendshipHandler{service: service}
}

func (h *FriendshipHandler) SendRequest(c *gin.Context) {
	var req friendDto.FriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	f, err := h.service.SendRequest(c.Request.Context(), userID, req.UserID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, friendDto.NewFriendshipResponse(f, userID))
}

func (h *FriendshipHandler) Accept(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	requestID, err := response.ParamUUID(c, "request_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	f, err := h.service.Accept(c.Request.Context(), userID, requestID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, friendDto.NewFriendshipResponse(f, userID))
}

func (h *FriendshipHandler) Decline(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	requestID, err := response.ParamUUID(c, "request_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.Decline(c.Request.Context(), userID, requestID); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Friend request declined"})
}

func (h *FriendshipHandler) Remove(c *gin.Context) {
	userID, otherID, ok := h.pair(c)
	if !ok {
		return
	}
	if err := h.service.Remove(c.Request.Context(), userID, otherID); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Friend removed"})
}

func (h *FriendshipHandler) Block(c *gin.Context) {
	userID, otherID, ok := h.pair(c)
	if !ok {
		return
	}
	if err := h.service.Block(c.Request.Context(), userID, otherID); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User blocked"})
}

func (h *FriendshipHandler) ListFriends(c *gin.Context) {
	h.list(c, h.service.ListFriends)
}

func (h *FriendshipHandler) ListIncoming(c *gin.Context) {
	h.list(c, h.service.ListIncoming)
}

func (h *FriendshipHandler) list(c *gin.Context, fetch func(ctx context.Context, userID uuid.UUID) ([]entity.Friendship, error)) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	rows, err := fetch(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	data := make([]friendDto.FriendshipResponse, 0, len(rows))
	for i := range rows {
		data = append(data, friendDto.NewFriendshipResponse(&rows[i], userID))
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func (h *FriendshipHandler) pair(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	otherID, err := response.ParamUUID(c, "user_id")
	if err != nil {
		response.ResponseError(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, otherID, true
}
