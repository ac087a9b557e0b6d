package handlers

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chatline-backend/internal/http/response"
	"github.com/yungbote/chatline-backend/internal/platform/logger"
	"github.com/yungbote/chatline-backend/internal/services"
)

type AttachmentHandler struct {
	log         *logger.Logger
	attachments services.AttachmentService
}

func NewAttachmentHandler(log *logger.Logger, attachments services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{
		log:         log.With("handler", "AttachmentHandler"),
		attachments: attachments,
	}
}

// POST /api/attachments (multipart, field "file")
func (h *AttachmentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(fileHeader.Filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	obj, err := h.attachments.Upload(c.Request.Context(), data, contentType, fileHeader.Filename)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, obj)
}

type downloadURLReq struct {
	ObjectID         string `json:"objectId"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}

// POST /api/attachments/download-url
func (h *AttachmentHandler) DownloadURL(c *gin.Context) {
	var req downloadURLReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	url, err := h.attachments.DownloadURL(c.Request.Context(), strings.TrimSpace(req.ObjectID), time.Duration(req.ExpiresInSeconds)*time.Second)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"url": url})
}
