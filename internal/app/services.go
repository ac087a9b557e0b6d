package app

import (
	"github.com/yungbote/chatline-backend/internal/platform/azblob"
	"github.com/yungbote/chatline-backend/internal/platform/logger"
	"github.com/yungbote/chatline-backend/internal/services"
)

type Services struct {
	Normalizer  *services.AttachmentNormalizer
	Attachments services.AttachmentService
	Chat        services.ChatService
	Titles      services.TitleService
	Assistant   services.AssistantService
}

func wireServices(log *logger.Logger, clients Clients, repos Repos) Services {
	log.Info("Wiring services...")
	normalizer := services.NewAttachmentNormalizer(log, clients.Blob, azblob.DefaultDownloadURLTTL)
	chat := services.NewChatService(log, repos.Threads, repos.Messages, clients.Blob, normalizer)
	return Services{
		Normalizer:  normalizer,
		Attachments: services.NewAttachmentService(log, clients.Blob),
		Chat:        chat,
		Titles:      services.NewTitleService(log, clients.LLM, chat),
		Assistant:   services.NewAssistantService(log, clients.LLM, chat),
	}
}
