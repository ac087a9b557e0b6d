package app

import (
	httpH "github.com/yungbote/chatline-backend/internal/http/handlers"
	"github.com/yungbote/chatline-backend/internal/platform/logger"
)

type Handlers struct {
	Attachment *httpH.AttachmentHandler
	Thread     *httpH.ThreadHandler
	Message    *httpH.MessageHandler
	Chat       *httpH.ChatHandler
	Health     *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Attachment: httpH.NewAttachmentHandler(log, services.Attachments),
		Thread:     httpH.NewThreadHandler(services.Chat, services.Titles),
		Message:    httpH.NewMessageHandler(services.Chat),
		Chat:       httpH.NewChatHandler(log, services.Assistant),
		Health:     httpH.NewHealthHandler(),
	}
}
