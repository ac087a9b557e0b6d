package app

import (
	"gorm.io/gorm"

	chatrepo "github.com/yungbote/chatline-backend/internal/data/repos/chat"
	"github.com/yungbote/chatline-backend/internal/platform/logger"
)

type Repos struct {
	Threads  chatrepo.ChatThreadRepo
	Messages chatrepo.ChatMessageRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Threads:  chatrepo.NewChatThreadRepo(db, log),
		Messages: chatrepo.NewChatMessageRepo(db, log),
	}
}
