package tier

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"
)

// Info describes the parsed tier of an Albion item id.
type Info struct {
	Tier    int
	Enchant int
	IsRare  bool
	Display string // e.g. "T6.2"
}

// Matches "T4_..." with an optional "@2" enchant suffix.
var tierPattern = regexp.MustCompile(`(?i)^T(\d)_.*?(?:@(\d))?$`)

// Tier base colors (Albion palette).
var tierColors = map[int]string{
	4: "#3B82F6",
	5: "#EF4444",
	6: "#F97316",
	7: "#EAB308",
	8: "#FFFFFF",
}

// Enchant colors; enchant 0 falls back to the tier color.
var enchantColors = map[int]string{
	1: "#22C55E",
	2: "#3B82F6",
	3: "#A855F7",
	4: "#FFD700",
}

const defaultColor = "#FFFFFF"

// Service parses item tiers and decides rarity. The rare-tier table
// is replaceable at runtime from persisted settings.
type Service struct {
	mu   sync.RWMutex
	rare map[[2]int]struct{}
}

// DefaultRareTiers is the stock rare table: high tiers and high
// enchants that are worth a notification on sight.
func DefaultRareTiers() [][2]int {
	return [][2]int{
		{4, 4},
		{5, 3}, {5, 4},
		{6, 2}, {6, 3}, {6, 4},
		{7, 1}, {7, 2}, {7, 3}, {7, 4},
		{8, 0}, {8, 1}, {8, 2}, {8, 3}, {8, 4},
	}
}

// NewService creates a Service with the default rare-tier table.
func NewService() *Service {
	s := &Service{}
	s.SetRareTiers(DefaultRareTiers())
	return s
}

// SetRareTiers replaces the rare-tier table wholesale.
func (s *Service) SetRareTiers(pairs [][2]int) {
	rare := make(map[[2]int]struct{}, len(pairs))
	for _, p := range pairs {
		rare[p] = struct{}{}
	}
	s.mu.Lock()
	s.rare = rare
	s.mu.Unlock()
}

// RareTiers returns the current rare (tier, enchant) pairs, sorted by
// tier then enchant.
func (s *Service) RareTiers() [][2]int {
	s.mu.RLock()
	out := make([][2]int, 0, len(s.rare))
	for p := range s.rare {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// Parse extracts tier information from an item id. Unparseable ids
// yield (Info{}, false) and are treated as unknown, never an error.
func (s *Service) Parse(itemID string) (Info, bool) {
	if itemID == "" {
		return Info{}, false
	}
	m := tierPattern.FindStringSubmatch(itemID)
	if m == nil {
		return Info{}, false
	}
	t, _ := strconv.Atoi(m[1])
	enchant := 0
	if m[2] != "" {
		enchant, _ = strconv.Atoi(m[2])
	}
	return Info{
		Tier:    t,
		Enchant: enchant,
		IsRare:  s.isRare(t, enchant),
		Display: fmt.Sprintf("T%d.%d", t, enchant),
	}, true
}

func (s *Service) isRare(t, enchant int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rare[[2]int{t, enchant}]
	return ok
}

// Color returns the display color for an item id: the enchant color
// when enchanted, otherwise the tier base color.
func (s *Service) Color(itemID string) string {
	info, ok := s.Parse(itemID)
	if !ok {
		return defaultColor
	}
	if info.Enchant > 0 {
		if c, ok := enchantColors[info.Enchant]; ok {
			return c
		}
		return defaultColor
	}
	if c, ok := tierColors[info.Tier]; ok {
		return c
	}
	return defaultColor
}

// BaseColor returns the tier base color regardless of enchant.
func BaseColor(t int) string {
	if c, ok := tierColors[t]; ok {
		return c
	}
	return defaultColor
}
