package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/chatline-backend/internal/http/response"
	"github.com/yungbote/chatline-backend/internal/services"
)

type MessageHandler struct {
	chat services.ChatService
}

func NewMessageHandler(chat services.ChatService) *MessageHandler {
	return &MessageHandler{chat: chat}
}

// GET /api/threads/:id/messages
func (h *MessageHandler) List(c *gin.Context) {
	threadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_thread_id", err)
		return
	}
	msgs, err := h.chat.GetMessages(c.Request.Context(), threadID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"messages": msgs})
}

// POST /api/threads/:id/messages
func (h *MessageHandler) Append(c *gin.Context) {
	threadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_thread_id", err)
		return
	}
	var req services.MessageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	msg, err := h.chat.AppendMessage(c.Request.Context(), threadID, req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}
