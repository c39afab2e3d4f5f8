package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	apirest "github.com/Kazxye/Loot-Logger-Albion-Online/api/rest"
	apiws "github.com/Kazxye/Loot-Logger-Albion-Online/api/ws"
	"github.com/Kazxye/Loot-Logger-Albion-Online/cache"
	"github.com/Kazxye/Loot-Logger-Albion-Online/config"
	dbadapter "github.com/Kazxye/Loot-Logger-Albion-Online/db"
	"github.com/Kazxye/Loot-Logger-Albion-Online/loot"
	mw "github.com/Kazxye/Loot-Logger-Albion-Online/middleware"
	"github.com/Kazxye/Loot-Logger-Albion-Online/model"
	"github.com/Kazxye/Loot-Logger-Albion-Online/notify"
	"github.com/Kazxye/Loot-Logger-Albion-Online/price"
	"github.com/Kazxye/Loot-Logger-Albion-Online/scheduler"
	"github.com/Kazxye/Loot-Logger-Albion-Online/settings"
	"github.com/Kazxye/Loot-Logger-Albion-Online/stream"
	"github.com/Kazxye/Loot-Logger-Albion-Online/tier"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Cache ----
	kv, err := cache.New(cfg.Cache)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Core services ----
	tiers := tier.NewService()
	lootLog := loot.NewLog(loot.DefaultCapacity)

	priceCache := price.NewCache(kv, cfg.Price.TTL)
	resolver := price.NewResolver(cfg.Price, priceCache, logger)
	enricher := price.NewEnricher(resolver, lootLog, cfg.Price.BatchSize, cfg.Price.BatchDelay, logger)
	notifier := notify.NewDispatcher(cfg.Notify, tiers, logger)

	settingsSvc := settings.NewService(db, resolver, notifier, tiers, enricher, logger)
	settingsSvc.Load()

	// ---- Stream pipeline ----
	mgr := stream.NewManager(ctx, lootLog, tiers, resolver, enricher, notifier, nil, logger)
	hub := apiws.NewHub(cfg.Security, apiws.Sources{
		Stats:   mgr.Stats,
		History: lootLog.Snapshot,
	}, logger)
	mgr.SetHub(hub)

	// Enrichment results reach browsers that already rendered the event.
	enricher.OnResult = func(itemID string, p int64, patched int) {
		hub.Broadcast(stream.EventLootPrice, stream.PricePatch{ItemID: itemID, Price: p})
	}

	feed := stream.NewClient(cfg.Feed, logger)
	mgr.Attach(feed)
	go feed.Run(ctx)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	sched.AddTicker("price_resweep", cfg.Price.ResweepEvery, func() {
		enricher.EnrichUnpriced(ctx)
	})
	sched.AddTicker("stats_broadcast", 30*time.Second, func() {
		hub.Broadcast(stream.EventStats, mgr.Stats())
	})

	// ---- Gin HTTP server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	lootH := apirest.NewLootHandler(lootLog, mgr, logger)
	settingsH := apirest.NewSettingsHandler(settingsSvc, logger)

	r.GET("/health", lootH.Health)

	api := r.Group("/api")
	{
		api.GET("/loots/recent", lootH.Recent)
		api.GET("/loots", lootH.List)
		api.GET("/loots/summary", lootH.Summary)
		api.GET("/stats", lootH.Stats)
		api.GET("/players", lootH.Players)
		api.POST("/clear", lootH.Clear)

		api.GET("/settings", settingsH.Get)
		api.PUT("/settings", settingsH.Update)
		api.POST("/settings/webhook/test", settingsH.TestWebhook)
	}

	r.GET("/ws", hub.ServeWS)

	// ---- Dashboard static files ----
	if cfg.Server.WebDir != "" {
		r.StaticFile("/", cfg.Server.WebDir+"/index.html")
		r.NoRoute(func(c *gin.Context) {
			path := cfg.Server.WebDir + c.Request.URL.Path
			if _, err := os.Stat(path); err == nil {
				c.File(path)
				return
			}
			c.JSON(404, gin.H{"error": "not found"})
		})
		logger.Info("Serving dashboard", zap.String("dir", cfg.Server.WebDir))
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
