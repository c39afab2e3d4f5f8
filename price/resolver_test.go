package price

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Kazxye/Loot-Logger-Albion-Online/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPriceConfig(westURL, eastURL string) config.PriceConfig {
	return config.PriceConfig{
		Servers: []config.PriceServer{
			{ID: "west", Name: "Americas", URL: westURL},
			{ID: "east", Name: "Asia", URL: eastURL},
		},
		Default:      "west",
		Locations:    []string{"Caerleon", "Bridgewatch"},
		TTL:          time.Minute,
		Timeout:      2 * time.Second,
		RequestsPerS: 1000,
	}
}

func newTestResolver(t *testing.T, handler http.HandlerFunc) (*Resolver, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	r := NewResolver(testPriceConfig(srv.URL, srv.URL), newPriceCache(t, time.Minute), zap.NewNop())
	return r, srv
}

func TestResolve_AveragesPositiveMins(t *testing.T) {
	r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Contains(t, req.URL.Path, "/api/v2/stats/prices/T4_ORE.json")
		assert.Equal(t, "Caerleon,Bridgewatch", req.URL.Query().Get("locations"))
		w.Write([]byte(`[
			{"city":"Caerleon","sell_price_min":100},
			{"city":"Bridgewatch","sell_price_min":0},
			{"city":"Martlock","sell_price_min":201}
		]`))
	})

	// Zero entries are excluded: mean of 100 and 201, rounded.
	assert.Equal(t, int64(151), r.Resolve(context.Background(), "T4_ORE"))
}

func TestResolve_EmptyAndAllZero(t *testing.T) {
	r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/api/v2/stats/prices/T4_ORE.json" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"city":"Caerleon","sell_price_min":0}]`))
	})

	ctx := context.Background()
	assert.Zero(t, r.Resolve(ctx, "T4_ORE"))
	assert.Zero(t, r.Resolve(ctx, "T5_WOOD"))
}

func TestResolve_FailSoft(t *testing.T) {
	var calls int32
	r, srv := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			w.Write([]byte(`not json`))
		}
	})

	ctx := context.Background()
	assert.Zero(t, r.Resolve(ctx, "T4_ORE"), "http error yields 0")
	assert.Zero(t, r.Resolve(ctx, "T4_ORE"), "parse error yields 0")

	srv.Close()
	assert.Zero(t, r.Resolve(ctx, "T4_ORE"), "transport error yields 0")
}

func TestResolve_UsesCache(t *testing.T) {
	var calls int32
	r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`[{"city":"Caerleon","sell_price_min":500}]`))
	})

	ctx := context.Background()
	require.Equal(t, int64(500), r.Resolve(ctx, "T4_ORE"))
	require.Equal(t, int64(500), r.Resolve(ctx, "T4_ORE"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second resolve is a cache hit")
}

func TestSetServer_ResetsCache(t *testing.T) {
	var calls int32
	r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`[{"city":"Caerleon","sell_price_min":500}]`))
	})

	ctx := context.Background()
	r.Resolve(ctx, "T4_ORE")
	require.True(t, r.SetServer("east"))
	assert.Equal(t, "east", r.ActiveServer())

	r.Resolve(ctx, "T4_ORE")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "server switch invalidates cached prices")
}

func TestSetServer_UnknownID(t *testing.T) {
	r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {})
	assert.False(t, r.SetServer("moon"))
	assert.Equal(t, "west", r.ActiveServer())
}

func TestSetServer_SameServerKeepsCache(t *testing.T) {
	var calls int32
	r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`[{"city":"Caerleon","sell_price_min":500}]`))
	})

	ctx := context.Background()
	r.Resolve(ctx, "T4_ORE")
	require.True(t, r.SetServer("west"))
	r.Resolve(ctx, "T4_ORE")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
