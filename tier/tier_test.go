package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	s := NewService()

	tests := []struct {
		itemID  string
		ok      bool
		tier    int
		enchant int
		display string
	}{
		{"T4_MAIN_SWORD", true, 4, 0, "T4.0"},
		{"T8_2H_BOW_AVALON@1", true, 8, 1, "T8.1"},
		{"T6_RUNE", true, 6, 0, "T6.0"},
		{"t5_potion_heal", true, 5, 0, "T5.0"},
		{"QUESTITEM_TOKEN", false, 0, 0, ""},
		{"", false, 0, 0, ""},
	}

	for _, tt := range tests {
		info, ok := s.Parse(tt.itemID)
		assert.Equal(t, tt.ok, ok, tt.itemID)
		if !tt.ok {
			continue
		}
		assert.Equal(t, tt.tier, info.Tier, tt.itemID)
		assert.Equal(t, tt.enchant, info.Enchant, tt.itemID)
		assert.Equal(t, tt.display, info.Display, tt.itemID)
	}
}

func TestRarity_DefaultTable(t *testing.T) {
	s := NewService()

	info, ok := s.Parse("T8_ORE")
	require.True(t, ok)
	assert.True(t, info.IsRare, "plain T8 is rare")

	info, ok = s.Parse("T6_MAIN_SWORD@2")
	require.True(t, ok)
	assert.True(t, info.IsRare, "T6.2 is rare")

	info, ok = s.Parse("T4_MAIN_SWORD")
	require.True(t, ok)
	assert.False(t, info.IsRare, "plain T4 is not rare")
}

func TestSetRareTiers_Replaces(t *testing.T) {
	s := NewService()
	s.SetRareTiers([][2]int{{4, 0}})

	info, ok := s.Parse("T4_MAIN_SWORD")
	require.True(t, ok)
	assert.True(t, info.IsRare)

	info, ok = s.Parse("T8_ORE")
	require.True(t, ok)
	assert.False(t, info.IsRare, "default table no longer applies")
}

func TestColor(t *testing.T) {
	s := NewService()

	assert.Equal(t, "#3B82F6", s.Color("T4_MAIN_SWORD"), "tier base color")
	assert.Equal(t, "#22C55E", s.Color("T5_ORE@1"), "enchant color wins")
	assert.Equal(t, "#FFFFFF", s.Color("UNKNOWN_THING"))
	assert.Equal(t, "#EAB308", BaseColor(7))
	assert.Equal(t, "#FFFFFF", BaseColor(1))
}
