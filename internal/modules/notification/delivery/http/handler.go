package handler

import (
	"net/http"

	notifDto "anoa.com/studyhub/internal/modules/notification/dto"
	notification "anoa.com/studyhub/internal/modules/notification/service"
	"anoa.com/studyhub/pkg/response"
	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	store notification.NotificationStore
}

func NewNotificationHandler(store notification.NotificationStore) *NotificationHandler {
	return &NotificationHandler{store: store}
}

func (h *NotificationHandler) List(c *gin.Context) {
	var query notifDto.ListNotificationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	notifications, err := h.store.List(c.Request.Context(), userID, query.Limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	data := make([]notifDto.NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		data = append(data, notifDto.NewNotificationResponse(n))
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req notifDto.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	n, err := h.store.MarkRead(c.Request.Context(), userID, req.IDs)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, notifDto.MarkReadResponse{Updated: n})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	n, err := h.store.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, notifDto.MarkReadResponse{Updated: n})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	count, err := h.store.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, notifDto.UnreadCountResponse{Count: count})
}
