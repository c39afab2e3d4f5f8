package loot

import (
	"strconv"
	"strings"

	"github.com/Kazxye/Loot-Logger-Albion-Online/model"
)

// Item categories derived from item-id tokens.
const (
	CategoryEquipment  = "equipment"
	CategoryConsumable = "consumable"
	CategoryRune       = "rune"
	CategoryResource   = "resource"
	CategoryOther      = "other"
)

// AllCategories lists every category id in display order.
var AllCategories = []string{
	CategoryEquipment, CategoryConsumable, CategoryResource, CategoryRune, CategoryOther,
}

// FilterSpec is the value object describing the visible subset. Empty
// Tiers/Categories/Players mean "no restriction".
type FilterSpec struct {
	Search     string   `json:"search"`
	Tiers      []int    `json:"tiers"`
	Categories []string `json:"categories"`
	Players    []string `json:"players"`
	RareOnly   bool     `json:"rare_only"`
}

// Categorize maps an item id to exactly one category. Rules are
// checked in a fixed order; the first match wins.
func Categorize(itemID string) string {
	id := strings.ToUpper(itemID)

	switch {
	case containsAny(id,
		"_ARMOR_", "_SHOES_", "_HEAD_", "_CAPE", "_BAG", "_MOUNT_",
		"_2H_", "_MAIN_", "_OFF_", "WEAPON", "SHIELD", "_TOOL_"):
		return CategoryEquipment
	case containsAny(id, "POTION", "FOOD", "MEAL", "FISH", "_COOKED"):
		return CategoryConsumable
	case containsAny(id, "RUNE", "SOUL", "RELIC"):
		return CategoryRune
	case containsAny(id,
		"_ROCK", "_ORE", "_HIDE", "_WOOD", "_FIBER", "_PLANKS",
		"_METALBAR", "_LEATHER", "_CLOTH"):
		return CategoryResource
	default:
		return CategoryOther
	}
}

func containsAny(s string, tokens ...string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// Visible returns the subset of events passing every predicate in the
// spec. Pure: it never mutates its inputs and depends only on them.
func Visible(events []model.LootEvent, spec FilterSpec) []model.LootEvent {
	out := make([]model.LootEvent, 0, len(events))
	for _, ev := range events {
		if matches(ev, spec) {
			out = append(out, ev)
		}
	}
	return out
}

func matches(ev model.LootEvent, spec FilterSpec) bool {
	if spec.Search != "" {
		q := strings.ToLower(spec.Search)
		if !strings.Contains(strings.ToLower(ev.ItemName), q) &&
			!strings.Contains(strings.ToLower(ev.ItemID), q) &&
			!strings.Contains(strings.ToLower(ev.LootedBy.Name), q) &&
			!strings.Contains(strings.ToLower(ev.LootedFrom.Name), q) {
			return false
		}
	}

	if len(spec.Tiers) > 0 {
		// Unparseable tier labels are "unknown" and skip the tier
		// predicate rather than failing it.
		if t, ok := tierFromDisplay(ev.Tier.Display); ok && !containsInt(spec.Tiers, t) {
			return false
		}
	}

	if len(spec.Categories) > 0 && !containsStr(spec.Categories, Categorize(ev.ItemID)) {
		return false
	}

	if len(spec.Players) > 0 && !containsStr(spec.Players, ev.LootedBy.Name) {
		return false
	}

	if spec.RareOnly && !ev.Tier.IsRare {
		return false
	}

	return true
}

// tierFromDisplay extracts the leading tier digit from a display label
// like "T6.2".
func tierFromDisplay(display string) (int, bool) {
	if len(display) < 2 || (display[0] != 'T' && display[0] != 't') {
		return 0, false
	}
	t, err := strconv.Atoi(display[1:2])
	if err != nil {
		return 0, false
	}
	return t, true
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func containsStr(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// TotalValue sums estimatedPrice * quantity over events with a known
// positive price; unknown or non-positive prices contribute zero.
func TotalValue(events []model.LootEvent) int64 {
	var total int64
	for _, ev := range events {
		if ev.EstimatedPrice != nil && *ev.EstimatedPrice > 0 {
			total += *ev.EstimatedPrice * int64(ev.Quantity)
		}
	}
	return total
}

// CategoryCounts returns the number of events per category.
func CategoryCounts(events []model.LootEvent) map[string]int {
	out := make(map[string]int, len(AllCategories))
	for _, ev := range events {
		out[Categorize(ev.ItemID)]++
	}
	return out
}

// PlayerCounts returns the number of events per acting player name.
func PlayerCounts(events []model.LootEvent) map[string]int {
	out := make(map[string]int)
	for _, ev := range events {
		out[ev.LootedBy.Name]++
	}
	return out
}
