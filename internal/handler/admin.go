package handler

import (
	"net/http"
	"time"

	"github.com/averos/gatekeeper/internal/repository"
	"github.com/averos/gatekeeper/internal/service"
	"github.com/gin-gonic/gin"
)

// AdminHandler exposes the operational surface: IP list management, user
// limit resets and the active tier table.
type AdminHandler struct {
	admin *service.AdminService
	tiers *repository.TierRepository
}

func NewAdminHandler(admin *service.AdminService, tiers *repository.TierRepository) *AdminHandler {
	return &AdminHandler{admin: admin, tiers: tiers}
}

type whitelistRequest struct {
	IP string `json:"ip" binding:"required,ip"`
}

type blacklistRequest struct {
	IP        string     `json:"ip" binding:"required,ip"`
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (h *AdminHandler) AddToWhitelist(c *gin.Context) {
	var req whitelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid ip is required"})
		return
	}

	if err := h.admin.AddToWhitelist(c.Request.Context(), req.IP); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to persist whitelist entry"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ip": req.IP, "list": "whitelist"})
}

func (h *AdminHandler) RemoveFromWhitelist(c *gin.Context) {
	ip := c.Param("ip")

	if err := h.admin.RemoveFromWhitelist(c.Request.Context(), ip); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove whitelist entry"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) AddToBlacklist(c *gin.Context) {
	var req blacklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid ip is required"})
		return
	}

	var expires time.Time
	if req.ExpiresAt != nil {
		if req.ExpiresAt.Before(time.Now()) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expires_at is in the past"})
			return
		}
		expires = *req.ExpiresAt
	}

	if err := h.admin.AddToBlacklist(c.Request.Context(), req.IP, req.Reason, expires); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to persist blacklist entry"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ip": req.IP, "list": "blacklist", "reason": req.Reason})
}

func (h *AdminHandler) RemoveFromBlacklist(c *gin.Context) {
	ip := c.Param("ip")

	if err := h.admin.RemoveFromBlacklist(c.Request.Context(), ip); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove blacklist entry"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) Lists(c *gin.Context) {
	whitelist, blacklist := h.admin.Lists()
	c.JSON(http.StatusOK, gin.H{
		"whitelist": whitelist,
		"blacklist": blacklist,
	})
}

func (h *AdminHandler) ResetUserLimits(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	if err := h.admin.ResetUserLimits(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset limits"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "reset": true})
}

func (h *AdminHandler) Tiers(c *gin.Context) {
	tiers, err := h.tiers.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tiers"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tiers": tiers})
}
