package price

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Kazxye/Loot-Logger-Albion-Online/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// locationPrice is one per-city record from the albion-online-data
// prices endpoint. Only the minimum sell order matters here.
type locationPrice struct {
	City         string `json:"city"`
	SellPriceMin int64  `json:"sell_price_min"`
}

// Resolver looks up average market prices for item ids against the
// active price server, consulting the Cache first. Every failure mode
// resolves to price 0: a pricing outage must never block ingestion.
type Resolver struct {
	servers   map[string]config.PriceServer
	locations string // pre-joined query value
	cache     *Cache
	client    *http.Client
	limiter   *rate.Limiter
	logger    *zap.Logger

	mu     sync.RWMutex
	active config.PriceServer
}

// NewResolver creates a Resolver from the price config. The active
// server starts at cfg.Default.
func NewResolver(cfg config.PriceConfig, cache *Cache, logger *zap.Logger) *Resolver {
	servers := make(map[string]config.PriceServer, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers[s.ID] = s
	}
	active, ok := servers[cfg.Default]
	if !ok && len(cfg.Servers) > 0 {
		active = cfg.Servers[0]
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RequestsPerS
	if rps <= 0 {
		rps = 20
	}

	return &Resolver{
		servers:   servers,
		locations: strings.Join(cfg.Locations, ","),
		cache:     cache,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), 10),
		logger:    logger,
		active:    active,
	}
}

// ActiveServer returns the id of the currently selected price server.
func (r *Resolver) ActiveServer() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active.ID
}

// Servers lists the selectable price servers.
func (r *Resolver) Servers() []config.PriceServer {
	out := make([]config.PriceServer, 0, len(r.servers))
	for _, s := range r.servers {
		out = append(out, s)
	}
	return out
}

// SetServer switches the active price server and resets the cache,
// since prices from different regions are not comparable. Returns
// false for an unknown server id.
func (r *Resolver) SetServer(id string) bool {
	s, ok := r.servers[id]
	if !ok {
		return false
	}
	r.mu.Lock()
	changed := r.active.ID != id
	r.active = s
	r.mu.Unlock()

	if changed {
		r.cache.ResetAll()
		r.logger.Info("price server changed", zap.String("server", id))
	}
	return true
}

// Resolve returns the average of positive minimum sell prices across
// the configured market locations, caching the result. Any transport
// or decode failure, and an empty or all-zero response, yield 0.
func (r *Resolver) Resolve(ctx context.Context, itemID string) int64 {
	r.mu.RLock()
	server := r.active
	r.mu.RUnlock()

	if p, ok := r.cache.Get(ctx, server.ID, itemID); ok {
		return p
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return 0
	}

	p, err := r.fetch(ctx, server, itemID)
	if err != nil {
		r.logger.Warn("price lookup failed",
			zap.String("item_id", itemID),
			zap.String("server", server.ID),
			zap.Error(err))
		return 0
	}

	r.cache.Put(ctx, server.ID, itemID, p)
	return p
}

func (r *Resolver) fetch(ctx context.Context, server config.PriceServer, itemID string) (int64, error) {
	u := fmt.Sprintf("%s/api/v2/stats/prices/%s.json?locations=%s",
		strings.TrimRight(server.URL, "/"), url.PathEscape(itemID), url.QueryEscape(r.locations))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return 0, fmt.Errorf("price api: http %d", resp.StatusCode)
	}

	var records []locationPrice
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return 0, err
	}

	var sum, n int64
	for _, rec := range records {
		if rec.SellPriceMin > 0 {
			sum += rec.SellPriceMin
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return int64(math.Round(float64(sum) / float64(n))), nil
}
