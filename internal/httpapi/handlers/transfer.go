package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crowsupport/chatbridge/internal/common"
	"github.com/crowsupport/chatbridge/internal/relay"
)

// PrepareTransfer freezes the conversation and returns the handoff
// payload. Optionally raises a ticket when the caller supplies contact
// details; ticket failure degrades the response, it does not undo the
// transfer.
func (h *Handler) PrepareTransfer(c *gin.Context) {
	key := c.Param("session_id")

	var req struct {
		UserEmail string `json:"user_email"`
		UserName  string `json:"user_name"`
	}
	_ = c.ShouldBindJSON(&req) // body is optional

	payload := h.Store.PrepareTransfer(c.Request.Context(), key)

	resp := gin.H{
		"summary":       payload.Summary,
		"agent_summary": payload.AgentSummary,
		"messages":      payload.Messages,
		"metadata":      payload.Meta,
	}

	if req.UserEmail != "" {
		ticketID, err := h.Tickets.CreateTicket(c.Request.Context(), relay.TicketRequest{
			ConversationHistory: payload.AgentSummary,
			SessionID:           payload.Meta.SessionID,
			UserEmail:           req.UserEmail,
			UserName:            req.UserName,
		})
		if err != nil {
			h.Log.Warn("ticket creation failed", "session_id", key, "err", err)
			resp["ticket"] = gin.H{"success": false}
		} else {
			if err := h.Repo.CreateTicketRecord(c.Request.Context(), &relay.TicketRecord{
				TicketID:  ticketID,
				SessionID: payload.Meta.SessionID,
				UserEmail: req.UserEmail,
				UserName:  req.UserName,
			}); err != nil {
				h.Log.Warn("ticket record insert failed", "session_id", key, "err", err)
			}
			resp["ticket"] = gin.H{"success": true, "ticket_id": ticketID}
		}
	}

	common.OK(c, resp)
}

// ConsumeTransfer is the destination side: it returns the payload at
// most once and reports 404 when nothing transferred is stored, which
// tells the destination page to open bare.
func (h *Handler) ConsumeTransfer(c *gin.Context) {
	key := c.Param("session_id")

	payload := h.Store.Consume(c.Request.Context(), key)
	if payload == nil {
		common.Fail(c, http.StatusNotFound, 40404, "no transferred conversation")
		return
	}

	common.OK(c, gin.H{
		"summary":       payload.Summary,
		"agent_summary": payload.AgentSummary,
		"messages":      payload.Messages,
		"metadata":      payload.Meta,
	})
}

// WidgetAuth mints the Sunshine user JWT the destination widget boots
// with.
func (h *Handler) WidgetAuth(c *gin.Context) {
	key := c.Param("session_id")

	token, err := h.Sunshine.UserJWT(key)
	if err != nil {
		h.Log.Warn("sunshine jwt failed", "session_id", key, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50003, "widget auth unavailable")
		return
	}
	common.OK(c, gin.H{"jwt": token, "app_id": h.Cfg.SunshineAppID})
}
