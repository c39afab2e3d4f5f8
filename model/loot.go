package model

import (
	"strings"
	"time"
)

// Actor identifies who looted or who was looted from. Names may carry
// sentinel prefixes: "@" for environment sources (chests, mists) and
// "MOB_" for monsters.
type Actor struct {
	Name     string `json:"name"`
	Guild    string `json:"guild"`
	Alliance string `json:"alliance"`
}

// IsEnvironment reports whether the actor is an environment source
// rather than a real player.
func (a Actor) IsEnvironment() bool {
	return strings.HasPrefix(a.Name, "@")
}

// FormatName renders the actor as "{ALLIANCE} [GUILD] Name".
func (a Actor) FormatName() string {
	parts := make([]string, 0, 3)
	if a.Alliance != "" {
		parts = append(parts, "{"+a.Alliance+"}")
	}
	if a.Guild != "" {
		parts = append(parts, "["+a.Guild+"]")
	}
	parts = append(parts, a.Name)
	return strings.Join(parts, " ")
}

// DisplayOrigin strips the display sentinels from a source name:
// "@CHEST" becomes "CHEST", "MOB_FOREST_BEAR" becomes "FOREST BEAR".
func DisplayOrigin(name string) string {
	switch {
	case name == "":
		return "-"
	case strings.HasPrefix(name, "@"):
		return name[1:]
	case strings.HasPrefix(name, "MOB_"):
		return strings.ReplaceAll(name[4:], "_", " ")
	default:
		return name
	}
}

// Tier is the serialized tier descriptor carried on a loot event.
type Tier struct {
	Display string `json:"display"` // e.g. "T6.2", empty when unparseable
	Color   string `json:"color"`   // Albion palette hex color
	IsRare  bool   `json:"is_rare"`
}

// LootEvent is one observed item pickup flowing through the system.
// ID is assigned upstream and is the sole reconciliation key for
// asynchronous price patches. EstimatedPrice is nil until enrichment
// completes; only the enrichment pipeline sets it.
type LootEvent struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	TimestampDisplay string    `json:"timestamp_display"`
	ItemID           string    `json:"item_id"`
	ItemName         string    `json:"item_name"`
	Quantity         int       `json:"quantity"`
	LootedBy         Actor     `json:"looted_by"`
	LootedFrom       Actor     `json:"looted_from"`
	Tier             Tier      `json:"tier"`
	EstimatedPrice   *int64    `json:"estimatedPrice"`
}

// SessionStats is the aggregate counter block shown in the dashboard
// header. Partial stats payloads from upstream merge field-wise.
type SessionStats struct {
	TotalLoots    int64  `json:"total_loots"`
	TotalItems    int64  `json:"total_items"`
	PlayersActive int    `json:"players_active"`
	SessionStart  string `json:"session_start,omitempty"`
	Status        string `json:"status"`
}

// Connection statuses reported through SessionStats.Status.
const (
	StatusOffline    = "offline"
	StatusConnecting = "connecting"
	StatusOnline     = "online"
)
