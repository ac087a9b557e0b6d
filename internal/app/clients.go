package app

import (
	"fmt"

	"github.com/yungbote/chatline-backend/internal/platform/azblob"
	"github.com/yungbote/chatline-backend/internal/platform/logger"
	"github.com/yungbote/chatline-backend/internal/platform/openai"
)

type Clients struct {
	Blob azblob.BlobService
	LLM  openai.Client
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")
	blob, err := azblob.NewBlobService(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init blob service: %w", err)
	}
	llm, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}
	return Clients{Blob: blob, LLM: llm}, nil
}
