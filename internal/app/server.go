package app

import (
	httpserver "github.com/yungbote/chatline-backend/internal/http"
	"github.com/yungbote/chatline-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, handlers Handlers) *httpserver.Server {
	return httpserver.NewServer(httpserver.RouterConfig{
		Log:               log,
		AttachmentHandler: handlers.Attachment,
		ThreadHandler:     handlers.Thread,
		MessageHandler:    handlers.Message,
		ChatHandler:       handlers.Chat,
		HealthHandler:     handlers.Health,
	})
}
