package rest

import (
	"errors"
	"net/http"

	"github.com/Kazxye/Loot-Logger-Albion-Online/notify"
	"github.com/Kazxye/Loot-Logger-Albion-Online/settings"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SettingsHandler serves the persisted user-settings endpoints.
type SettingsHandler struct {
	svc    *settings.Service
	logger *zap.Logger
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(svc *settings.Service, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{svc: svc, logger: logger}
}

type settingsResponse struct {
	PriceServer string         `json:"price_server"`
	Servers     []serverOption `json:"servers"`
	WebhookURL  string         `json:"discord_webhook"`
	Theme       string         `json:"theme"`
	RareTiers   [][2]int       `json:"rare_tiers"`
}

type serverOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Get returns all user settings plus the selectable price servers.
// GET /api/settings
func (h *SettingsHandler) Get(c *gin.Context) {
	servers := make([]serverOption, 0)
	for _, s := range h.svc.Servers() {
		servers = append(servers, serverOption{ID: s.ID, Name: s.Name})
	}
	c.JSON(http.StatusOK, settingsResponse{
		PriceServer: h.svc.PriceServer(),
		Servers:     servers,
		WebhookURL:  h.svc.Webhook(),
		Theme:       h.svc.Theme(),
		RareTiers:   h.svc.RareTiers(),
	})
}

type settingsUpdate struct {
	PriceServer *string   `json:"price_server"`
	WebhookURL  *string   `json:"discord_webhook"`
	Theme       *string   `json:"theme"`
	RareTiers   *[][2]int `json:"rare_tiers"`
}

// Update applies a partial settings change; absent fields are left
// untouched.
// PUT /api/settings
func (h *SettingsHandler) Update(c *gin.Context) {
	var req settingsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	if req.PriceServer != nil {
		if err := h.svc.SetPriceServer(c.Request.Context(), *req.PriceServer); err != nil {
			if errors.Is(err, settings.ErrUnknownServer) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown price server"})
				return
			}
			h.fail(c, err)
			return
		}
	}
	if req.WebhookURL != nil {
		if err := h.svc.SetWebhook(*req.WebhookURL); err != nil {
			if errors.Is(err, notify.ErrInvalidWebhook) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook url"})
				return
			}
			h.fail(c, err)
			return
		}
	}
	if req.Theme != nil {
		if err := h.svc.SetTheme(*req.Theme); err != nil {
			h.fail(c, err)
			return
		}
	}
	if req.RareTiers != nil {
		if err := h.svc.SetRareTiers(*req.RareTiers); err != nil {
			h.fail(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// TestWebhook validates a webhook URL and posts a test message without
// saving it.
// POST /api/settings/webhook/test
func (h *SettingsHandler) TestWebhook(c *gin.Context) {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if err := h.svc.TestWebhook(req.URL); err != nil {
		if errors.Is(err, notify.ErrInvalidWebhook) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook url"})
			return
		}
		h.logger.Warn("webhook test failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "delivery failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *SettingsHandler) fail(c *gin.Context, err error) {
	h.logger.Error("settings update failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
