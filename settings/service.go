// Package settings persists user preferences and applies them to the
// running services they configure.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Kazxye/Loot-Logger-Albion-Online/config"
	"github.com/Kazxye/Loot-Logger-Albion-Online/model"
	"github.com/Kazxye/Loot-Logger-Albion-Online/notify"
	"github.com/Kazxye/Loot-Logger-Albion-Online/price"
	"github.com/Kazxye/Loot-Logger-Albion-Online/tier"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnknownServer is returned when a price-server id is not in the
// configured server list.
var ErrUnknownServer = errors.New("settings: unknown price server")

const defaultTheme = "dark"

// Enrichment retries still-null prices. The settings service triggers
// it after a price-server switch so the log reprices against the new
// endpoint.
type Enrichment interface {
	EnrichUnpriced(ctx context.Context)
}

// Service loads settings from the database at startup, applies them to
// the resolver, notifier and tier table, and saves changes back.
type Service struct {
	db       *gorm.DB
	resolver *price.Resolver
	notifier *notify.Dispatcher
	tiers    *tier.Service
	enricher Enrichment
	logger   *zap.Logger
}

// NewService wires the settings store to the services it configures.
func NewService(db *gorm.DB, resolver *price.Resolver, notifier *notify.Dispatcher, tiers *tier.Service, enricher Enrichment, logger *zap.Logger) *Service {
	return &Service{
		db:       db,
		resolver: resolver,
		notifier: notifier,
		tiers:    tiers,
		enricher: enricher,
		logger:   logger,
	}
}

// Load applies every persisted setting. Missing rows keep their
// defaults; unreadable rows are logged and skipped so one corrupt
// value cannot block startup.
func (s *Service) Load() {
	if server, ok := s.loadString(model.SettingPriceServer); ok {
		if !s.resolver.SetServer(server) {
			s.logger.Warn("saved price server no longer configured",
				zap.String("server", server))
		}
	}
	if url, ok := s.loadString(model.SettingWebhookURL); ok {
		if err := s.notifier.SetWebhook(url); err != nil {
			s.logger.Warn("saved webhook url rejected", zap.Error(err))
		}
	}
	if pairs, ok := s.loadRareTiers(); ok {
		s.tiers.SetRareTiers(pairs)
	}
}

// Servers lists the configured pricing endpoints.
func (s *Service) Servers() []config.PriceServer {
	return s.resolver.Servers()
}

// TestWebhook validates a destination URL and posts a test message to
// it without persisting anything.
func (s *Service) TestWebhook(url string) error {
	return s.notifier.SendTest(url)
}

// PriceServer returns the active price-server id.
func (s *Service) PriceServer() string {
	return s.resolver.ActiveServer()
}

// SetPriceServer switches the pricing endpoint, persists the choice,
// and kicks off a repricing sweep when the endpoint actually changed.
func (s *Service) SetPriceServer(ctx context.Context, id string) error {
	if !s.resolver.SetServer(id) {
		return fmt.Errorf("%w: %s", ErrUnknownServer, id)
	}
	if err := s.saveJSON(model.SettingPriceServer, id); err != nil {
		return err
	}
	s.logger.Info("price server changed", zap.String("server", id))
	go s.enricher.EnrichUnpriced(context.WithoutCancel(ctx))
	return nil
}

// Webhook returns the persisted notification destination.
func (s *Service) Webhook() string {
	return s.notifier.Webhook()
}

// SetWebhook validates, applies and persists the notification
// destination. An empty URL disables notifications.
func (s *Service) SetWebhook(url string) error {
	if err := s.notifier.SetWebhook(url); err != nil {
		return err
	}
	return s.saveJSON(model.SettingWebhookURL, url)
}

// Theme returns the persisted dashboard theme id.
func (s *Service) Theme() string {
	if theme, ok := s.loadString(model.SettingTheme); ok && theme != "" {
		return theme
	}
	return defaultTheme
}

// SetTheme persists the dashboard theme id.
func (s *Service) SetTheme(theme string) error {
	return s.saveJSON(model.SettingTheme, theme)
}

// RareTiers returns the active rare tier/enchant table.
func (s *Service) RareTiers() [][2]int {
	return s.tiers.RareTiers()
}

// SetRareTiers applies and persists a replacement rare-tier table.
func (s *Service) SetRareTiers(pairs [][2]int) error {
	s.tiers.SetRareTiers(pairs)
	return s.saveJSON(model.SettingRareTiers, pairs)
}

func (s *Service) loadString(key string) (string, bool) {
	raw, ok := s.loadRaw(key)
	if !ok {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		s.logger.Warn("unreadable setting", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, true
}

func (s *Service) loadRareTiers() ([][2]int, bool) {
	raw, ok := s.loadRaw(model.SettingRareTiers)
	if !ok {
		return nil, false
	}
	var pairs [][2]int
	if err := json.Unmarshal(raw, &pairs); err != nil {
		s.logger.Warn("unreadable setting",
			zap.String("key", model.SettingRareTiers), zap.Error(err))
		return nil, false
	}
	return pairs, true
}

func (s *Service) loadRaw(key string) ([]byte, bool) {
	var row model.Setting
	err := s.db.First(&row, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("setting read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return row.Value, true
}

func (s *Service) saveJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	row := model.Setting{Key: key, Value: datatypes.JSON(raw)}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}
