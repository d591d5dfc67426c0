package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/crowsupport/chatbridge/internal/auth"
	"github.com/crowsupport/chatbridge/internal/common"
	"github.com/crowsupport/chatbridge/internal/httpapi/middleware"
	"github.com/crowsupport/chatbridge/internal/models"
)

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) AgentLogin(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	var agent models.Agent
	err := h.DB.WithContext(c.Request.Context()).
		Where("email = ?", req.Email).
		First(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusUnauthorized, 40103, "invalid credentials")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	if !auth.CheckPassword(agent.PasswordHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, 40103, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(h.Cfg.JWTSecret, agent.ID, agent.Email)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{"token": token, "agent": agent})
}

func (h *Handler) AgentMe(c *gin.Context) {
	v, ok := c.Get(middleware.AgentIDKey)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	agentID, _ := v.(uint64)

	var agent models.Agent
	err := h.DB.WithContext(c.Request.Context()).First(&agent, agentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "agent not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, agent)
}

// SessionArchive lists what the relays forwarded for a session; agents
// use it to audit the bridge.
func (h *Handler) SessionArchive(c *gin.Context) {
	sessionID := c.Param("session_id")

	msgs, err := h.Repo.ListBySession(c.Request.Context(), sessionID, 0)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list archive")
		return
	}
	common.OK(c, gin.H{"messages": msgs})
}
