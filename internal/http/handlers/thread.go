package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/chatline-backend/internal/http/response"
	"github.com/yungbote/chatline-backend/internal/platform/openai"
	"github.com/yungbote/chatline-backend/internal/services"
)

type ThreadHandler struct {
	chat   services.ChatService
	titles services.TitleService
}

func NewThreadHandler(chat services.ChatService, titles services.TitleService) *ThreadHandler {
	return &ThreadHandler{chat: chat, titles: titles}
}

// GET /api/threads?limit=25&cursor=...
func (h *ThreadHandler) List(c *gin.Context) {
	limit := 25
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	threads, next, err := h.chat.ListThreads(c.Request.Context(), limit, strings.TrimSpace(c.Query("cursor")))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	payload := gin.H{"threads": threads}
	if next != "" {
		payload["nextCursor"] = next
	}
	response.RespondOK(c, payload)
}

// POST /api/threads
func (h *ThreadHandler) Create(c *gin.Context) {
	var req services.ThreadInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	thread, err := h.chat.CreateThread(c.Request.Context(), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"thread": thread})
}

// GET /api/threads/:id
func (h *ThreadHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_thread_id", err)
		return
	}
	thread, err := h.chat.GetThread(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"thread": thread})
}

// PATCH /api/threads/:id
func (h *ThreadHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_thread_id", err)
		return
	}
	var req services.ThreadUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	thread, err := h.chat.UpdateThread(c.Request.Context(), id, req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"thread": thread})
}

// DELETE /api/threads/:id
func (h *ThreadHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_thread_id", err)
		return
	}
	if err := h.chat.DeleteThread(c.Request.Context(), id); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type generateTitleReq struct {
	Messages []openai.Turn `json:"messages"`
}

// PATCH /api/threads/:id/title
func (h *ThreadHandler) GenerateTitle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_thread_id", err)
		return
	}
	var req generateTitleReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	thread, err := h.titles.GenerateTitle(c.Request.Context(), id, req.Messages)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"thread": thread})
}
