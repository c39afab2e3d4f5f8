package model

import (
	"time"

	"gorm.io/datatypes"
)

// Setting is one persisted user preference. Values are stored as JSON
// so structured settings (like the rare-tier table) share the same row
// shape as plain strings.
type Setting struct {
	Key       string         `gorm:"primaryKey;size:64" json:"key"`
	Value     datatypes.JSON `gorm:"not null" json:"value"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// Well-known setting keys.
const (
	SettingPriceServer = "price_server"
	SettingWebhookURL  = "discord_webhook"
	SettingTheme       = "theme"
	SettingRareTiers   = "rare_tiers"
)
