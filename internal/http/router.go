package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/chatline-backend/internal/http/handlers"
	httpMW "github.com/yungbote/chatline-backend/internal/http/middleware"
	"github.com/yungbote/chatline-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	AttachmentHandler *httpH.AttachmentHandler
	ThreadHandler     *httpH.ThreadHandler
	MessageHandler    *httpH.MessageHandler
	ChatHandler       *httpH.ChatHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("chatline-backend"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Attachments
		if cfg.AttachmentHandler != nil {
			api.POST("/attachments", cfg.AttachmentHandler.Upload)
			api.POST("/attachments/download-url", cfg.AttachmentHandler.DownloadURL)
		}

		// Threads
		if cfg.ThreadHandler != nil {
			api.GET("/threads", cfg.ThreadHandler.List)
			api.POST("/threads", cfg.ThreadHandler.Create)
			api.GET("/threads/:id", cfg.ThreadHandler.Get)
			api.PATCH("/threads/:id", cfg.ThreadHandler.Update)
			api.DELETE("/threads/:id", cfg.ThreadHandler.Delete)
			api.PATCH("/threads/:id/title", cfg.ThreadHandler.GenerateTitle)
		}

		// Messages
		if cfg.MessageHandler != nil {
			api.GET("/threads/:id/messages", cfg.MessageHandler.List)
			api.POST("/threads/:id/messages", cfg.MessageHandler.Append)
		}

		// Chat (SSE)
		if cfg.ChatHandler != nil {
			api.POST("/chat", cfg.ChatHandler.Stream)
		}
	}

	return r
}
