package handlers

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/crowsupport/chatbridge/internal/common"
	"github.com/crowsupport/chatbridge/internal/config"
	"github.com/crowsupport/chatbridge/internal/conversation"
	"github.com/crowsupport/chatbridge/internal/relay"
	"github.com/crowsupport/chatbridge/internal/store/rabbitmq"
)

// Publisher is the queue side the webhook hands inbound messages to.
type Publisher interface {
	PublishInbound(ctx context.Context, msg rabbitmq.InboundMessage) error
}

type Handler struct {
	DB        *gorm.DB
	Cfg       config.Config
	Log       *slog.Logger
	Store     *conversation.Store
	Repo      *relay.Repo
	Messenger *relay.MessengerClient
	Sunshine  *relay.SunshineClient
	Tickets   *relay.TicketClient
	Channels  *relay.Registry
	Rabbit    Publisher
}

func NewHandler(db *gorm.DB, cfg config.Config, log *slog.Logger, store *conversation.Store, rabbit Publisher) *Handler {
	messenger := relay.NewMessengerClient(cfg.GraphBaseURL, cfg.PageAccessToken)
	sunshine := relay.NewSunshineClient(cfg.SunshineBaseURL, cfg.SunshineAppID, cfg.SunshineKeyID, cfg.SunshineKeySecret)

	channels := relay.NewRegistry()
	channels.Register("messenger", func(ctx context.Context) (relay.Channel, error) {
		return &relay.MessengerChannel{Client: messenger}, nil
	})
	channels.Register("sunshine", func(ctx context.Context) (relay.Channel, error) {
		return &relay.SunshineChannel{Client: sunshine}, nil
	})

	return &Handler{
		DB:        db,
		Cfg:       cfg,
		Log:       log,
		Store:     store,
		Repo:      relay.NewRepo(db),
		Messenger: messenger,
		Sunshine:  sunshine,
		Tickets:   relay.NewTicketClient(cfg.ZendeskBaseURL, cfg.ZendeskEmail, cfg.ZendeskAPIToken),
		Channels:  channels,
		Rabbit:    rabbit,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}
