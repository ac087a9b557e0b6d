package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/chatline-backend/internal/http/response"
	"github.com/yungbote/chatline-backend/internal/platform/logger"
	"github.com/yungbote/chatline-backend/internal/services"
)

type ChatHandler struct {
	log       *logger.Logger
	assistant services.AssistantService
}

func NewChatHandler(log *logger.Logger, assistant services.AssistantService) *ChatHandler {
	return &ChatHandler{
		log:       log.With("handler", "ChatHandler"),
		assistant: assistant,
	}
}

type chatStreamReq struct {
	ThreadID uuid.UUID `json:"threadId"`
}

// POST /api/chat
//
// Streams the assistant's reply as server-sent events: one {"delta": ...}
// frame per model delta, then a final {"done": true, "message": ...} frame
// with the persisted message.
func (h *ChatHandler) Stream(c *gin.Context) {
	var req chatStreamReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.ThreadID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "missing_thread_id", fmt.Errorf("threadId is required"))
		return
	}

	started := false
	writeFrame := func(v any) {
		payload, err := json.Marshal(v)
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
		c.Writer.Flush()
	}

	msg, err := h.assistant.StreamReply(c.Request.Context(), req.ThreadID, func(delta string) {
		if !started {
			started = true
			c.Writer.Header().Set("Content-Type", "text/event-stream")
			c.Writer.Header().Set("Cache-Control", "no-cache")
			c.Writer.Header().Set("Connection", "keep-alive")
			c.Writer.WriteHeader(http.StatusOK)
		}
		writeFrame(gin.H{"delta": delta})
	})
	if err != nil {
		if !started {
			response.RespondAPIError(c, err)
			return
		}
		// Headers are gone; the stream itself has to carry the failure.
		h.log.Error("chat stream failed mid-flight", "thread_id", req.ThreadID.String(), "error", err.Error())
		writeFrame(gin.H{"error": "stream failed"})
		return
	}
	if !started {
		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.WriteHeader(http.StatusOK)
	}
	writeFrame(gin.H{"done": true, "message": msg})
}
