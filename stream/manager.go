package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Kazxye/Loot-Logger-Albion-Online/loot"
	"github.com/Kazxye/Loot-Logger-Albion-Online/model"
	"github.com/Kazxye/Loot-Logger-Albion-Online/price"
	"github.com/Kazxye/Loot-Logger-Albion-Online/tier"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Feed message types, shared by the upstream protocol and the
// dashboard push hub.
const (
	EventNewLoot   = "new_loot"
	EventStats     = "stats"
	EventStatus    = "status"
	EventHistory   = "history"
	EventClear     = "clear"
	EventLootPrice = "loot_price"
)

// Envelope is the wire framing of every feed message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Broadcaster pushes events to connected dashboard clients. The ws hub
// implements it; tests substitute a recorder.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// Notifier forwards qualifying loot events and feed connection
// transitions to an external destination.
type Notifier interface {
	MaybeNotify(ev model.LootEvent)
	SendStatus(message string, online bool)
}

// PricePatch is the payload broadcast when enrichment resolves a price
// after the event was already shown.
type PricePatch struct {
	ID     string `json:"id,omitempty"`
	ItemID string `json:"item_id"`
	Price  int64  `json:"price"`
}

// Manager applies feed messages to the loot log, session stats, price
// pipeline and notifier, and re-emits them to the dashboard hub.
type Manager struct {
	ctx      context.Context
	log      *loot.Log
	tiers    *tier.Service
	resolver *price.Resolver
	enricher *price.Enricher
	notifier Notifier
	hub      Broadcaster
	logger   *zap.Logger

	mu    sync.Mutex
	stats model.SessionStats
	// playersReported flips once the feed supplies players_active;
	// until then the count is derived from the local roster.
	playersReported bool

	// wg tracks spawned resolution goroutines so shutdown and tests
	// can wait for them.
	wg sync.WaitGroup
}

// NewManager wires the feed dispatch pipeline. ctx bounds all
// asynchronous price resolutions the manager spawns.
func NewManager(ctx context.Context, log *loot.Log, tiers *tier.Service, resolver *price.Resolver, enricher *price.Enricher, notifier Notifier, hub Broadcaster, logger *zap.Logger) *Manager {
	return &Manager{
		ctx:      ctx,
		log:      log,
		tiers:    tiers,
		resolver: resolver,
		enricher: enricher,
		notifier: notifier,
		hub:      hub,
		logger:   logger,
		stats: model.SessionStats{
			SessionStart: time.Now().UTC().Format(time.RFC3339),
			Status:       model.StatusOffline,
		},
	}
}

// SetHub installs the dashboard broadcaster. The manager and hub
// reference each other, so one side is wired after construction.
func (m *Manager) SetHub(hub Broadcaster) {
	m.hub = hub
}

func (m *Manager) broadcast(event string, payload any) {
	if m.hub != nil {
		m.hub.Broadcast(event, payload)
	}
}

// Attach registers the manager as the client's connection and message
// handler.
func (m *Manager) Attach(c *Client) {
	c.OnConnecting(func() { m.setStatus(model.StatusConnecting) })
	c.OnConnect(func() {
		m.setStatus(model.StatusOnline)
		m.notifier.SendStatus("Capture session online", true)
	})
	c.OnDisconnect(func() {
		m.setStatus(model.StatusOffline)
		m.notifier.SendStatus("Capture session offline", false)
	})
	c.OnMessage(m.HandleMessage)
}

// Wait blocks until all in-flight single-event resolutions finish.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Stats returns a copy of the current session counters. The active
// player count is derived from the local roster until the feed reports
// its own players_active, which then takes precedence.
func (m *Manager) Stats() model.SessionStats {
	m.mu.Lock()
	s := m.stats
	reported := m.playersReported
	m.mu.Unlock()
	if !reported {
		s.PlayersActive = len(m.log.Players())
	}
	return s
}

// HandleMessage decodes one feed envelope and dispatches it. Malformed
// messages are logged and dropped.
func (m *Manager) HandleMessage(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		m.logger.Warn("malformed feed message", zap.Error(err))
		return
	}

	switch env.Type {
	case EventNewLoot:
		m.handleNewLoot(env.Payload)
	case EventHistory:
		m.handleHistory(env.Payload)
	case EventStats:
		m.handleStats(env.Payload)
	case EventStatus:
		m.handleStatus(env.Payload)
	case EventClear:
		m.Clear()
	default:
		m.logger.Debug("unknown feed event", zap.String("type", env.Type))
	}
}

// handleNewLoot merges the event immediately so the UI updates before
// the price is known, then resolves that one item asynchronously. The
// async patch races bulk enrichment sweeps; the still-null guard on
// price patching keeps the two paths from conflicting.
func (m *Manager) handleNewLoot(payload json.RawMessage) {
	var w wireLoot
	if err := json.Unmarshal(payload, &w); err != nil {
		m.logger.Warn("malformed loot payload", zap.Error(err))
		return
	}
	ev := m.normalize(w)

	m.log.Add(ev)

	m.mu.Lock()
	m.stats.TotalLoots++
	m.stats.TotalItems += int64(ev.Quantity)
	m.mu.Unlock()

	m.broadcast(EventNewLoot, ev)
	m.broadcast(EventStats, m.Stats())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		p := m.resolver.Resolve(m.ctx, ev.ItemID)
		if m.log.PatchPrice(ev.ID, p) {
			m.broadcast(EventLootPrice, PricePatch{ID: ev.ID, ItemID: ev.ItemID, Price: p})
		}
		// Notify from the resolved price even when a bulk sweep won the
		// patch race; the notification decision is per event, not per patch.
		ev.EstimatedPrice = &p
		m.notifier.MaybeNotify(ev)
	}()
}

// handleHistory wholesale-replaces the log. The feed sends history
// oldest-to-newest, so it is reversed into the log's newest-first
// order before the bulk enrichment sweep starts.
func (m *Manager) handleHistory(payload json.RawMessage) {
	var h struct {
		Loots []wireLoot `json:"loots"`
	}
	if err := json.Unmarshal(payload, &h); err != nil {
		m.logger.Warn("malformed history payload", zap.Error(err))
		return
	}

	events := make([]model.LootEvent, 0, len(h.Loots))
	for i := len(h.Loots) - 1; i >= 0; i-- {
		events = append(events, m.normalize(h.Loots[i]))
	}
	m.log.ReplaceAll(events)

	m.logger.Info("history applied", zap.Int("events", m.log.Len()))
	m.broadcast(EventHistory, m.log.Snapshot())
	m.broadcast(EventStats, m.Stats())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.enricher.Enrich(m.ctx, m.log.ItemIDs())
	}()
}

// handleStats merges a partial aggregate payload field-wise without
// touching the log.
func (m *Manager) handleStats(payload json.RawMessage) {
	var p struct {
		TotalLoots    *int64  `json:"total_loots"`
		TotalItems    *int64  `json:"total_items"`
		PlayersActive *int    `json:"players_active"`
		SessionStart  *string `json:"session_start"`
		Status        *string `json:"status"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		m.logger.Warn("malformed stats payload", zap.Error(err))
		return
	}

	m.mu.Lock()
	if p.TotalLoots != nil {
		m.stats.TotalLoots = *p.TotalLoots
	}
	if p.TotalItems != nil {
		m.stats.TotalItems = *p.TotalItems
	}
	if p.PlayersActive != nil {
		m.stats.PlayersActive = *p.PlayersActive
		m.playersReported = true
	}
	if p.SessionStart != nil {
		m.stats.SessionStart = *p.SessionStart
	}
	if p.Status != nil {
		m.stats.Status = *p.Status
	}
	m.mu.Unlock()

	m.broadcast(EventStats, m.Stats())
}

func (m *Manager) handleStatus(payload json.RawMessage) {
	var p struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		m.logger.Warn("malformed status payload", zap.Error(err))
		return
	}
	m.setStatus(p.Status)
}

func (m *Manager) setStatus(status string) {
	m.mu.Lock()
	changed := m.stats.Status != status
	m.stats.Status = status
	m.mu.Unlock()
	if changed {
		m.logger.Info("feed status", zap.String("status", status))
		m.broadcast(EventStatus, map[string]string{"status": status})
	}
}

// Clear empties the log and roster and zeroes the session counters.
// Also serves the dashboard's clear request.
func (m *Manager) Clear() {
	m.log.Clear()
	m.mu.Lock()
	m.stats.TotalLoots = 0
	m.stats.TotalItems = 0
	m.stats.PlayersActive = 0
	m.playersReported = false
	m.mu.Unlock()

	m.logger.Info("session cleared")
	m.broadcast(EventClear, nil)
	m.broadcast(EventStats, m.Stats())
}

// wireLoot is the feed's loot record. Timestamps arrive as ISO-8601
// strings that may lack a timezone, so they are parsed leniently.
type wireLoot struct {
	ID               string      `json:"id"`
	Timestamp        string      `json:"timestamp"`
	TimestampDisplay string      `json:"timestamp_display"`
	ItemID           string      `json:"item_id"`
	ItemName         string      `json:"item_name"`
	Quantity         int         `json:"quantity"`
	LootedBy         model.Actor `json:"looted_by"`
	LootedFrom       model.Actor `json:"looted_from"`
	Tier             model.Tier  `json:"tier"`
}

// normalize converts a wire record to the domain event, recomputing
// the tier descriptor locally so user rare-tier overrides apply.
func (m *Manager) normalize(w wireLoot) model.LootEvent {
	ev := model.LootEvent{
		ID:               w.ID,
		Timestamp:        parseTimestamp(w.Timestamp),
		TimestampDisplay: w.TimestampDisplay,
		ItemID:           w.ItemID,
		ItemName:         w.ItemName,
		Quantity:         w.Quantity,
		LootedBy:         w.LootedBy,
		LootedFrom:       w.LootedFrom,
		Tier:             w.Tier,
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Quantity <= 0 {
		ev.Quantity = 1
	}
	if ev.TimestampDisplay == "" {
		ev.TimestampDisplay = ev.Timestamp.Format("15:04:05")
	}
	if info, ok := m.tiers.Parse(ev.ItemID); ok {
		ev.Tier = model.Tier{
			Display: info.Display,
			Color:   m.tiers.Color(ev.ItemID),
			IsRare:  info.IsRare,
		}
	}
	return ev
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now()
}
