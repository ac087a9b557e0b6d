package app

import (
	"github.com/yungbote/chatline-backend/internal/platform/logger"
	"github.com/yungbote/chatline-backend/internal/utils"
)

type Config struct {
	Environment string
	Version     string
	Port        string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
		Port:        utils.GetEnv("PORT", "8080", log),
	}
}
