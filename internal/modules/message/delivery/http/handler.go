package handler

import (
	"net/http"

	msgDto "anoa.com/studyhub/internal/modules/message/dto"
	message "anoa.com/studyhub/internal/modules/message/service"
	"anoa.com/studyhub/pkg/response"
	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	service message.MessageService
}

func NewMessageHandler(service message.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

func (h *MessageHandler) SendGroupMessage(c *gin.Context) {
	var req msgDto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	groupID, err := response.ParamUUID(c, "group_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	msg, err := h.service.SendGroupMessage(c.Request.Context(), userID, groupID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msgDto.NewGroupMessageResponse(msg))
}

func (h *MessageHandler) ListGroupMessages(c *gin.Context) {
	var query msgDto.ListMessagesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	groupID, err := response.ParamUUID(c, "group_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	messages, err := h.service.ListGroupMessages(c.Request.Context(), userID, groupID, query.Limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	data := make([]msgDto.MessageResponse, 0, len(messages))
	for i := range messages {
		data = append(data, msgDto.NewGroupMessageResponse(&messages[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func (h *MessageHandler) EditGroupMessage(c *gin.Context) {
	var req msgDto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	messageID, err := response.ParamUUID(c, "message_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	msg, err := h.service.EditGroupMessage(c.Request.Context(), userID, messageID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgDto.NewGroupMessageResponse(msg))
}

func (h *MessageHandler) DeleteGroupMessage(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	messageID, err := response.ParamUUID(c, "message_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.DeleteGroupMessage(c.Request.Context(), userID, messageID); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message deleted successfully"})
}

func (h *MessageHandler) StartChat(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	otherID, err := response.ParamUUID(c, "user_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	chat, err := h.service.StartChat(c.Request.Context(), userID, otherID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgDto.ChatResponse{
		ID:        chat.ID,
		OtherUser: chat.Other(userID),
		CreatedAt: chat.CreatedAt,
	})
}

func (h *MessageHandler) SendPrivateMessage(c *gin.Context) {
	var req msgDto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	chatID, err := response.ParamUUID(c, "chat_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	msg, err := h.service.SendPrivateMessage(c.Request.Context(), userID, chatID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msgDto.NewPrivateMessageResponse(msg))
}

func (h *MessageHandler) ListPrivateMessages(c *gin.Context) {
	var query msgDto.ListMessagesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	chatID, err := response.ParamUUID(c, "chat_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	messages, err := h.service.ListPrivateMessages(c.Request.Context(), userID, chatID, query.Limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	data := make([]msgDto.MessageResponse, 0, len(messages))
	for i := range messages {
		data = append(data, msgDto.NewPrivateMessageResponse(&messages[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func (h *MessageHandler) MarkChatRead(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	chatID, err := response.ParamUUID(c, "chat_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	n, err := h.service.MarkChatRead(c.Request.Context(), userID, chatID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgDto.MarkChatReadResponse{Updated: n})
}
