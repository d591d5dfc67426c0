package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crowsupport/chatbridge/internal/common"
	"github.com/crowsupport/chatbridge/internal/relay"
)

type sendRelayReq struct {
	Message string `json:"message" binding:"required"`
	UserID  string `json:"user_id" binding:"required"`
	Channel string `json:"channel"`
	PageID  string `json:"page_id"`
}

// SendRelayMessage forwards an agent reply to the user on the requested
// channel and archives it. Contract: {message, user_id} -> {success, message_id}.
func (h *Handler) SendRelayMessage(c *gin.Context) {
	var req sendRelayReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Channel == "" {
		req.Channel = "messenger"
	}

	channel, err := h.Channels.Get(c.Request.Context(), req.Channel)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10005, "unknown channel")
		return
	}
	// Per-page tokens override the default messenger client.
	if req.Channel == "messenger" && req.PageID != "" {
		if page, err := h.Repo.GetPageByID(c.Request.Context(), req.PageID); err == nil {
			channel = &relay.MessengerChannel{
				Client: relay.NewMessengerClient(h.Cfg.GraphBaseURL, page.AccessToken),
			}
		}
	}

	msgID, err := channel.Deliver(c.Request.Context(), req.UserID, req.Message)
	if err != nil {
		h.Log.Warn("relay send failed", "channel", req.Channel, "user_id", req.UserID, "err", err)
		common.OK(c, gin.H{"success": false})
		return
	}

	if err := h.Repo.ArchiveMessage(c.Request.Context(), &relay.RelayedMessage{
		SessionID: c.GetHeader("X-Session-ID"),
		PageID:    req.PageID,
		PSID:      req.UserID,
		Direction: "outbound",
		Text:      req.Message,
		MessageID: msgID,
	}); err != nil {
		h.Log.Warn("relay archive failed", "psid", req.UserID, "err", err)
	}

	common.OK(c, gin.H{"success": true, "message_id": msgID})
}

// GetRelayHistory returns the Messenger conversation with a PSID in the
// internal message shape, oldest first. Optional ?since=RFC3339.
func (h *Handler) GetRelayHistory(c *gin.Context) {
	psid := c.Param("psid")
	pageID := c.Query("page_id")

	var since time.Time
	if v := c.Query("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			since = t
		}
	}

	msgs, err := h.Messenger.FetchHistory(c.Request.Context(), pageID, psid, since)
	if err != nil {
		h.Log.Warn("relay history failed", "psid", psid, "err", err)
		common.Fail(c, http.StatusBadGateway, 50201, "history unavailable")
		return
	}
	common.OK(c, gin.H{"messages": msgs})
}

type exchangePSIDReq struct {
	ASID   string `json:"asid" binding:"required"`
	PageID string `json:"page_id" binding:"required"`
}

func (h *Handler) ExchangePSID(c *gin.Context) {
	var req exchangePSIDReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	psid, err := h.Messenger.ExchangePSID(c.Request.Context(), req.ASID, req.PageID)
	if err != nil {
		h.Log.Warn("psid exchange failed", "asid", req.ASID, "err", err)
		common.Fail(c, http.StatusBadGateway, 50202, "id exchange unavailable")
		return
	}
	common.OK(c, gin.H{"psid": psid})
}

type createTicketReq struct {
	ConversationHistory string `json:"conversation_history" binding:"required"`
	SessionID           string `json:"session_id" binding:"required"`
	UserEmail           string `json:"user_email" binding:"required"`
	UserName            string `json:"user_name"`
}

// CreateTicket is the ticketing relay contract:
// {conversationHistory, sessionId, userEmail, userName} -> {success, ticketId}.
func (h *Handler) CreateTicket(c *gin.Context) {
	var req createTicketReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	ticketID, err := h.Tickets.CreateTicket(c.Request.Context(), relay.TicketRequest{
		ConversationHistory: req.ConversationHistory,
		SessionID:           req.SessionID,
		UserEmail:           req.UserEmail,
		UserName:            req.UserName,
	})
	if err != nil {
		h.Log.Warn("ticket create failed", "session_id", req.SessionID, "err", err)
		common.OK(c, gin.H{"success": false})
		return
	}

	if err := h.Repo.CreateTicketRecord(c.Request.Context(), &relay.TicketRecord{
		TicketID:  ticketID,
		SessionID: req.SessionID,
		UserEmail: req.UserEmail,
		UserName:  req.UserName,
	}); err != nil {
		h.Log.Warn("ticket record insert failed", "session_id", req.SessionID, "err", err)
	}

	common.OK(c, gin.H{"success": true, "ticket_id": ticketID})
}
