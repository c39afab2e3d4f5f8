package price

import (
	"context"
	"sync"
	"time"

	"github.com/Kazxye/Loot-Logger-Albion-Online/loot"
	"go.uber.org/zap"
)

const (
	defaultBatchSize  = 10
	defaultBatchDelay = 200 * time.Millisecond
)

// Enricher fans out price resolutions over the loot log in bounded
// batches, pacing between batches so the pricing endpoint is never
// hammered. Results reconcile back into the log by item id, patching
// only entries whose price is still unknown; entries that moved, were
// evicted, or were priced by the single-event path are left alone.
type Enricher struct {
	resolver   *Resolver
	log        *loot.Log
	batchSize  int
	batchDelay time.Duration
	logger     *zap.Logger

	// OnResult, when set, runs after each resolution that patched at
	// least one log entry. Used to push price updates to dashboards.
	OnResult func(itemID string, price int64, patched int)
}

// NewEnricher creates an Enricher; batchSize/batchDelay <= 0 use the
// defaults (10 items, 200 ms).
func NewEnricher(resolver *Resolver, log *loot.Log, batchSize int, batchDelay time.Duration, logger *zap.Logger) *Enricher {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if batchDelay <= 0 {
		batchDelay = defaultBatchDelay
	}
	return &Enricher{
		resolver:   resolver,
		log:        log,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		logger:     logger,
	}
}

// Enrich resolves prices for the given item ids, deduplicated, in
// batches. Each batch resolves concurrently and fully settles before
// the inter-batch delay. Individual failures are absorbed by the
// resolver (price 0) and never abort the sweep. Blocks until done;
// callers run it on their own goroutine.
func (e *Enricher) Enrich(ctx context.Context, itemIDs []string) {
	ids := dedupe(itemIDs)
	if len(ids) == 0 {
		return
	}

	for start := 0; start < len(ids); start += e.batchSize {
		end := start + e.batchSize
		if end > len(ids) {
			end = len(ids)
		}

		var wg sync.WaitGroup
		for _, itemID := range ids[start:end] {
			wg.Add(1)
			go func(itemID string) {
				defer wg.Done()
				e.resolveOne(ctx, itemID)
			}(itemID)
		}
		wg.Wait()

		if end < len(ids) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.batchDelay):
			}
		}
	}
}

// EnrichUnpriced sweeps every log entry whose price is still unknown.
// Wired to a scheduler ticker so an earlier pricing outage heals
// without user action.
func (e *Enricher) EnrichUnpriced(ctx context.Context) {
	e.Enrich(ctx, e.log.UnpricedItemIDs())
}

func (e *Enricher) resolveOne(ctx context.Context, itemID string) {
	price := e.resolver.Resolve(ctx, itemID)
	patched := e.log.PatchItemPrice(itemID, price)
	if patched > 0 {
		e.logger.Debug("price patched",
			zap.String("item_id", itemID),
			zap.Int64("price", price),
			zap.Int("entries", patched))
		if e.OnResult != nil {
			e.OnResult(itemID, price, patched)
		}
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
