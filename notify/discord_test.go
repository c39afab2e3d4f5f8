package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Kazxye/Loot-Logger-Albion-Online/config"
	"github.com/Kazxye/Loot-Logger-Albion-Online/model"
	"github.com/Kazxye/Loot-Logger-Albion-Online/tier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDispatcher(t *testing.T, handler http.HandlerFunc) (*Dispatcher, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	d := NewDispatcher(config.NotifyConfig{PriceThreshold: 100_000}, tier.NewService(), zap.NewNop())
	d.client = srv.Client()
	// Tests point the dispatcher straight at the local server, bypassing
	// the prefix check that SetWebhook applies to user input.
	d.webhookURL = srv.URL
	return d, srv
}

func intPtr(v int64) *int64 { return &v }

func lootEvent(itemID string, price *int64, rare bool) model.LootEvent {
	return model.LootEvent{
		ID:             "evt-1",
		Timestamp:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ItemID:         itemID,
		ItemName:       "Adept's Broadsword",
		Quantity:       2,
		LootedBy:       model.Actor{Name: "Hunter", Guild: "Guild"},
		LootedFrom:     model.Actor{Name: "MOB_FOREST_KEEPER"},
		Tier:           model.Tier{Display: "T4.0", IsRare: rare},
		EstimatedPrice: price,
	}
}

func TestSetWebhook_Validation(t *testing.T) {
	d := NewDispatcher(config.NotifyConfig{}, tier.NewService(), zap.NewNop())

	assert.NoError(t, d.SetWebhook("https://discord.com/api/webhooks/123/abc"))
	assert.True(t, d.Enabled())

	assert.NoError(t, d.SetWebhook("https://discordapp.com/api/webhooks/123/abc"))

	assert.ErrorIs(t, d.SetWebhook("https://example.com/hook"), ErrInvalidWebhook)
	assert.ErrorIs(t, d.SetWebhook("http://discord.com/api/webhooks/123"), ErrInvalidWebhook)

	assert.NoError(t, d.SetWebhook(""))
	assert.False(t, d.Enabled())
}

func TestShouldNotify(t *testing.T) {
	d := NewDispatcher(config.NotifyConfig{PriceThreshold: 100_000}, tier.NewService(), zap.NewNop())

	assert.True(t, d.ShouldNotify(lootEvent("T4_MAIN_SWORD", nil, true)), "rare always qualifies")
	assert.True(t, d.ShouldNotify(lootEvent("T4_MAIN_SWORD", intPtr(150_000), false)))
	assert.False(t, d.ShouldNotify(lootEvent("T4_MAIN_SWORD", intPtr(100_000), false)), "threshold is exclusive")
	assert.False(t, d.ShouldNotify(lootEvent("T4_MAIN_SWORD", nil, false)), "unresolved price never qualifies")
}

func TestMaybeNotify_PostsEmbed(t *testing.T) {
	var got webhookPayload
	d, _ := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	})

	d.MaybeNotify(lootEvent("T4_MAIN_SWORD", intPtr(250_000), false))

	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "Adept's Broadsword", e.Title)
	assert.Contains(t, e.Description, "**Quantity:** 2")
	assert.Contains(t, e.Description, "**Tier:** T4.0")
	assert.Equal(t, 0x3B82F6, e.Color)
	require.NotNil(t, e.Thumbnail)
	assert.Contains(t, e.Thumbnail.URL, "T4_MAIN_SWORD")
	require.Len(t, e.Fields, 2)
	assert.Equal(t, "[Guild] Hunter", e.Fields[0].Value)
	assert.Equal(t, "FOREST KEEPER", e.Fields[1].Value)
}

func TestMaybeNotify_SkipsUnqualified(t *testing.T) {
	var calls atomic.Int32
	d, _ := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	d.MaybeNotify(lootEvent("T4_MAIN_SWORD", intPtr(500), false))
	assert.Equal(t, int32(0), calls.Load())
}

func TestMaybeNotify_DisabledWithoutWebhook(t *testing.T) {
	d := NewDispatcher(config.NotifyConfig{}, tier.NewService(), zap.NewNop())
	// No webhook configured. Must not panic or attempt a request.
	d.MaybeNotify(lootEvent("T4_MAIN_SWORD", intPtr(250_000), true))
}

func TestMaybeNotify_DeliveryFailureIsSwallowed(t *testing.T) {
	d, _ := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	d.MaybeNotify(lootEvent("T4_MAIN_SWORD", intPtr(250_000), true))
}

func TestSendTest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	d := NewDispatcher(config.NotifyConfig{}, tier.NewService(), zap.NewNop())
	d.client = srv.Client()

	assert.ErrorIs(t, d.SendTest("https://example.com/hook"), ErrInvalidWebhook)
	assert.Equal(t, int32(0), calls.Load())
}
