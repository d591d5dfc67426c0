package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crowsupport/chatbridge/internal/common"
	"github.com/crowsupport/chatbridge/internal/conversation"
)

// CreateSession hands the widget a fresh capture key. The conversation
// itself is created lazily on first append.
func (h *Handler) CreateSession(c *gin.Context) {
	key, err := common.NewULID()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}
	common.OK(c, gin.H{"session_id": key})
}

type appendMessageReq struct {
	Text     string         `json:"text" binding:"required"`
	Sender   string         `json:"sender" binding:"required"`
	Metadata map[string]any `json:"metadata"`
}

func (h *Handler) AppendMessage(c *gin.Context) {
	key := c.Param("session_id")

	var req appendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	sender := conversation.Sender(req.Sender)
	if !sender.Valid() {
		common.Fail(c, http.StatusBadRequest, 10002, "sender must be customer or agent")
		return
	}

	conv := h.Store.Append(c.Request.Context(), key, req.Text, sender, req.Metadata)
	common.OK(c, gin.H{
		"session_id":  key,
		"count":       len(conv.Messages),
		"last_update": conv.Meta.LastUpdateTime,
	})
}

func (h *Handler) GetTranscript(c *gin.Context) {
	key := c.Param("session_id")
	conv := h.Store.Initialize(c.Request.Context(), key)
	common.OK(c, conv)
}

func (h *Handler) GetStats(c *gin.Context) {
	key := c.Param("session_id")
	common.OK(c, h.Store.Stats(c.Request.Context(), key))
}

type setTopicReq struct {
	Topic string `json:"topic" binding:"required"`
}

func (h *Handler) SetTopic(c *gin.Context) {
	key := c.Param("session_id")

	var req setTopicReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	conv := h.Store.SetTopic(c.Request.Context(), key, req.Topic)
	common.OK(c, gin.H{"topic": conv.Meta.Topic})
}

func (h *Handler) ClearSession(c *gin.Context) {
	key := c.Param("session_id")
	conv := h.Store.Clear(c.Request.Context(), key)
	common.OK(c, gin.H{"session_id": conv.Meta.SessionID, "status": conv.Meta.Status})
}
