package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crowsupport/chatbridge/internal/common"
	"github.com/crowsupport/chatbridge/internal/store/rabbitmq"
)

// FacebookEvent is the webhook envelope Facebook posts on new messages.
type FacebookEvent struct {
	Object string `json:"object"`
	Entry  []struct {
		ID        string `json:"id"` // page id
		Time      int64  `json:"time"`
		Messaging []struct {
			Sender struct {
				ID string `json:"id"` // PSID
			} `json:"sender"`
			Timestamp int64 `json:"timestamp"`
			Message   *struct {
				Mid    string `json:"mid"`
				Text   string `json:"text"`
				IsEcho bool   `json:"is_echo"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

// VerifyWebhook answers Facebook's subscription challenge.
func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.Cfg.VerifyToken && challenge != "" {
		c.String(http.StatusOK, challenge)
		return
	}
	c.String(http.StatusForbidden, "verification failed")
}

// ReceiveWebhook acks the event immediately and queues each usable
// message for the relay worker. Echoes of our own sends and non-text
// payloads are skipped.
func (h *Handler) ReceiveWebhook(c *gin.Context) {
	var event FacebookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if event.Object != "page" && event.Object != "instagram" {
		common.Fail(c, http.StatusBadRequest, 10004, "unsupported webhook object")
		return
	}

	queued := 0
	for _, entry := range event.Entry {
		for _, m := range entry.Messaging {
			if m.Message == nil || m.Message.IsEcho || m.Message.Text == "" {
				continue
			}
			msg := rabbitmq.InboundMessage{
				PageID:    entry.ID,
				PSID:      m.Sender.ID,
				MessageID: m.Message.Mid,
				Text:      m.Message.Text,
				Timestamp: time.UnixMilli(m.Timestamp),
			}
			if err := h.Rabbit.PublishInbound(c.Request.Context(), msg); err != nil {
				// Facebook retries on its own schedule; ack anyway and log.
				h.Log.Error("inbound publish failed", "page_id", entry.ID, "psid", m.Sender.ID, "err", err)
				continue
			}
			queued++
		}
	}

	h.Log.Debug("webhook processed", "queued", queued)
	c.Status(http.StatusAccepted)
}
