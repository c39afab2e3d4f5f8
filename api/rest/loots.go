// Package rest serves the dashboard's HTTP API.
package rest

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Kazxye/Loot-Logger-Albion-Online/loot"
	"github.com/Kazxye/Loot-Logger-Albion-Online/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultRecentLimit = 100
	maxListLimit       = loot.DefaultCapacity
)

// SessionControl is the slice of the stream manager the REST layer
// needs: current counters and the clear operation.
type SessionControl interface {
	Stats() model.SessionStats
	Clear()
}

// LootHandler serves the loot log and session endpoints.
type LootHandler struct {
	log     *loot.Log
	session SessionControl
	logger  *zap.Logger
}

// NewLootHandler creates a LootHandler.
func NewLootHandler(log *loot.Log, session SessionControl, logger *zap.Logger) *LootHandler {
	return &LootHandler{log: log, session: session, logger: logger}
}

// Recent returns the newest loot events.
// GET /api/loots/recent?limit=100
func (h *LootHandler) Recent(c *gin.Context) {
	limit := defaultRecentLimit
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= maxListLimit {
		limit = l
	}
	c.JSON(http.StatusOK, gin.H{"loots": h.log.Recent(0, limit)})
}

// List returns a page of the loot log, newest first. Filter params
// narrow the log before pagination, so total reflects the filtered
// count.
// GET /api/loots?limit=50&offset=0&q=bag&tiers=6,7&categories=equipment&players=Hunter&rare=true
func (h *LootHandler) List(c *gin.Context) {
	limit := defaultRecentLimit
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= maxListLimit {
		limit = l
	}
	offset := 0
	if o, err := strconv.Atoi(c.Query("offset")); err == nil && o > 0 {
		offset = o
	}
	events := loot.Visible(h.log.Snapshot(), querySpec(c))
	c.JSON(http.StatusOK, gin.H{
		"loots": page(events, offset, limit),
		"total": len(events),
	})
}

// Summary returns derived aggregates over the filtered log: the event
// count, the silver value of priced drops, and per-category and
// per-player counts. Accepts the same filter params as List.
// GET /api/loots/summary
func (h *LootHandler) Summary(c *gin.Context) {
	events := loot.Visible(h.log.Snapshot(), querySpec(c))
	c.JSON(http.StatusOK, gin.H{
		"total":           len(events),
		"total_value":     loot.TotalValue(events),
		"category_counts": loot.CategoryCounts(events),
		"player_counts":   loot.PlayerCounts(events),
	})
}

// querySpec builds a FilterSpec from list-style query params. Invalid
// tier values are ignored rather than rejected.
func querySpec(c *gin.Context) loot.FilterSpec {
	spec := loot.FilterSpec{
		Search:   c.Query("q"),
		RareOnly: c.Query("rare") == "true",
	}
	if raw := c.Query("tiers"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if t, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				spec.Tiers = append(spec.Tiers, t)
			}
		}
	}
	if raw := c.Query("categories"); raw != "" {
		spec.Categories = strings.Split(raw, ",")
	}
	if raw := c.Query("players"); raw != "" {
		spec.Players = strings.Split(raw, ",")
	}
	return spec
}

func page(events []model.LootEvent, offset, limit int) []model.LootEvent {
	if offset < 0 || offset >= len(events) {
		return []model.LootEvent{}
	}
	end := offset + limit
	if end > len(events) {
		end = len(events)
	}
	return events[offset:end]
}

// Stats returns the aggregate session counters.
// GET /api/stats
func (h *LootHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Stats())
}

// Players returns the sorted roster of seen player names.
// GET /api/players
func (h *LootHandler) Players(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"players": h.log.Players()})
}

// Clear wipes the session: log, roster and counters.
// POST /api/clear
func (h *LootHandler) Clear(c *gin.Context) {
	h.session.Clear()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Health is the liveness endpoint.
// GET /health
func (h *LootHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
