package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/crowsupport/chatbridge/internal/common"
	"github.com/crowsupport/chatbridge/internal/config"
	"github.com/crowsupport/chatbridge/internal/conversation"
	"github.com/crowsupport/chatbridge/internal/httpapi/handlers"
	"github.com/crowsupport/chatbridge/internal/httpapi/middleware"
)

func NewRouter(db *gorm.DB, cfg config.Config, log *slog.Logger, store *conversation.Store, rabbit handlers.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(db, cfg, log, store, rabbit)

	r.GET("/ping", h.Ping)

	// Facebook webhook
	r.GET("/webhook", h.VerifyWebhook)
	r.POST("/webhook", h.ReceiveWebhook)

	// Capture API (website widget)
	r.POST("/sessions", h.CreateSession)
	r.POST("/sessions/:session_id/messages", h.AppendMessage)
	r.GET("/sessions/:session_id/messages", h.GetTranscript)
	r.GET("/sessions/:session_id/stats", h.GetStats)
	r.POST("/sessions/:session_id/topic", h.SetTopic)
	r.DELETE("/sessions/:session_id", h.ClearSession)

	// Handoff
	r.POST("/sessions/:session_id/transfer", h.PrepareTransfer)
	r.POST("/sessions/:session_id/consume", h.ConsumeTransfer)
	r.GET("/sessions/:session_id/widget-auth", h.WidgetAuth)

	// Ticketing relay
	r.POST("/tickets", h.CreateTicket)

	// Agent auth
	r.POST("/agent/login", h.AgentLogin)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/agent/me", h.AgentMe)
	authGroup.GET("/agent/sessions/:session_id/archive", h.SessionArchive)
	// Messaging relay (agent side)
	authGroup.POST("/relay/messages", h.SendRelayMessage)
	authGroup.GET("/relay/history/:psid", h.GetRelayHistory)
	authGroup.POST("/relay/psid", h.ExchangePSID)

	return r
}
