// Package loot holds the in-memory loot log and the filter engine that
// derives dashboard views from it.
package loot

import (
	"sort"
	"sync"

	"github.com/Kazxye/Loot-Logger-Albion-Online/model"
)

// DefaultCapacity caps the log at the newest 500 events.
const DefaultCapacity = 500

// Log is the capacity-bounded, newest-first loot event store. All
// mutations run under one lock so readers never observe a partially
// merged log. Price patches reconcile by event id and are silent
// no-ops when the target has been evicted or cleared.
type Log struct {
	mu       sync.RWMutex
	events   []model.LootEvent // newest first
	capacity int
	roster   map[string]struct{} // non-environment actor names
}

// NewLog creates an empty Log with the given capacity; cap <= 0 uses
// DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		capacity: capacity,
		roster:   make(map[string]struct{}),
	}
}

// Add prepends one event, clearing any price it arrived with, dropping
// a previous entry with the same id, and truncating the oldest entries
// past capacity. The acting player joins the roster unless it is an
// environment source.
func (l *Log) Add(ev model.LootEvent) {
	ev.EstimatedPrice = nil

	l.mu.Lock()
	defer l.mu.Unlock()

	// An id can reappear when upstream re-sends after a reconnect;
	// the newest copy wins.
	for i, old := range l.events {
		if old.ID == ev.ID {
			l.events = append(l.events[:i], l.events[i+1:]...)
			break
		}
	}

	l.events = append([]model.LootEvent{ev}, l.events...)
	if len(l.events) > l.capacity {
		l.events = l.events[:l.capacity]
	}

	if !ev.LootedBy.IsEnvironment() {
		l.roster[ev.LootedBy.Name] = struct{}{}
	}
}

// ReplaceAll installs a new log wholesale (bulk history hydration).
// Events are stored in the given order, prices reset to unknown, and
// the roster is rebuilt from scratch.
func (l *Log) ReplaceAll(events []model.LootEvent) {
	next := make([]model.LootEvent, 0, len(events))
	seen := make(map[string]struct{}, len(events))
	roster := make(map[string]struct{})

	for _, ev := range events {
		if _, dup := seen[ev.ID]; dup {
			continue
		}
		seen[ev.ID] = struct{}{}
		ev.EstimatedPrice = nil
		next = append(next, ev)
		if !ev.LootedBy.IsEnvironment() {
			roster[ev.LootedBy.Name] = struct{}{}
		}
	}
	if len(next) > l.capacity {
		next = next[:l.capacity]
	}

	l.mu.Lock()
	l.events = next
	l.roster = roster
	l.mu.Unlock()
}

// PatchPrice sets the price of the entry with the given id, if it is
// still present and its price is still unknown. Both the single-event
// resolution path and the bulk sweep use this same guard, so neither
// overwrites the other. Returns true when a patch was applied.
func (l *Log) PatchPrice(id string, price int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.events {
		if l.events[i].ID == id {
			if l.events[i].EstimatedPrice != nil {
				return false
			}
			p := price
			ev := l.events[i]
			ev.EstimatedPrice = &p
			l.events[i] = ev
			return true
		}
	}
	return false
}

// PatchItemPrice sets the price on every present entry with the given
// item id whose price is still unknown. Returns the number patched.
func (l *Log) PatchItemPrice(itemID string, price int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	patched := 0
	for i := range l.events {
		if l.events[i].ItemID == itemID && l.events[i].EstimatedPrice == nil {
			p := price
			ev := l.events[i]
			ev.EstimatedPrice = &p
			l.events[i] = ev
			patched++
		}
	}
	return patched
}

// Clear empties the log and the roster.
func (l *Log) Clear() {
	l.mu.Lock()
	l.events = nil
	l.roster = make(map[string]struct{})
	l.mu.Unlock()
}

// Len returns the current number of events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Snapshot returns a copy of the log, newest first.
func (l *Log) Snapshot() []model.LootEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.LootEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Recent returns up to limit newest events starting at offset.
func (l *Log) Recent(offset, limit int) []model.LootEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if offset < 0 || offset >= len(l.events) {
		return []model.LootEvent{}
	}
	end := offset + limit
	if limit <= 0 || end > len(l.events) {
		end = len(l.events)
	}
	out := make([]model.LootEvent, end-offset)
	copy(out, l.events[offset:end])
	return out
}

// Players returns the roster of known non-environment actor names,
// sorted for stable output.
func (l *Log) Players() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.roster))
	for name := range l.roster {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ItemIDs returns the distinct item ids currently in the log.
func (l *Log) ItemIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seen := make(map[string]struct{}, len(l.events))
	out := make([]string, 0, len(l.events))
	for _, ev := range l.events {
		if _, ok := seen[ev.ItemID]; ok {
			continue
		}
		seen[ev.ItemID] = struct{}{}
		out = append(out, ev.ItemID)
	}
	return out
}

// UnpricedItemIDs returns the distinct item ids of entries whose price
// is still unknown, for enrichment re-sweeps.
func (l *Log) UnpricedItemIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, ev := range l.events {
		if ev.EstimatedPrice != nil {
			continue
		}
		if _, ok := seen[ev.ItemID]; ok {
			continue
		}
		seen[ev.ItemID] = struct{}{}
		out = append(out, ev.ItemID)
	}
	return out
}
