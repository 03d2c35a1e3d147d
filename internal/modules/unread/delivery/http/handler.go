package handler

import (
	"net/http"

	unread "anoa.com/studyhub/internal/modules/unread/service"
	"anoa.com/studyhub/pkg/response"
	"github.com/gin-gonic/gin"
)

type UnreadHandler struct {
	service unread.UnreadService
}

func NewUnreadHandler(service unread.UnreadService) *UnreadHandler {
	return &UnreadHandler{service: service}
}

func (h *UnreadHandler) GetCounts(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	counts, err := h.service.Counts(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}
