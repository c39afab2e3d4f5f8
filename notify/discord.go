// Package notify forwards notable loot events to a user-configured
// Discord webhook. Delivery is best-effort: failures are logged and
// never retried or surfaced.
package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Kazxye/Loot-Logger-Albion-Online/config"
	"github.com/Kazxye/Loot-Logger-Albion-Online/model"
	"github.com/Kazxye/Loot-Logger-Albion-Online/tier"
	"go.uber.org/zap"
)

// ErrInvalidWebhook is returned for destination URLs that do not look
// like a Discord webhook. A client-side sanity check, not a security
// boundary.
var ErrInvalidWebhook = errors.New("notify: invalid webhook url")

var webhookPrefixes = []string{
	"https://discord.com/api/webhooks/",
	"https://discordapp.com/api/webhooks/",
}

const (
	defaultThreshold = 100_000
	footerText       = "Loot Logger Dashboard"
	fallbackColor    = 0xA855F7
	iconURLFormat    = "https://render.albiononline.com/v1/item/%s.png?size=128&quality=1"
)

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Thumbnail   *embedMedia  `json:"thumbnail,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Footer      embedFooter  `json:"footer"`
	Timestamp   string       `json:"timestamp"`
}

type embedMedia struct {
	URL string `json:"url"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

// Dispatcher evaluates loot events against the rare-or-valuable rule
// and posts embeds to the configured webhook.
type Dispatcher struct {
	tiers     *tier.Service
	threshold int64
	client    *http.Client
	logger    *zap.Logger

	mu         sync.RWMutex
	webhookURL string
}

// NewDispatcher creates a Dispatcher with no destination configured.
func NewDispatcher(cfg config.NotifyConfig, tiers *tier.Service, logger *zap.Logger) *Dispatcher {
	threshold := cfg.PriceThreshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		tiers:     tiers,
		threshold: threshold,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// SetWebhook installs the destination URL. An empty URL disables
// notifications; anything else must carry a Discord webhook prefix.
func (d *Dispatcher) SetWebhook(url string) error {
	url = strings.TrimSpace(url)
	if url != "" && !validWebhook(url) {
		return ErrInvalidWebhook
	}
	d.mu.Lock()
	d.webhookURL = url
	d.mu.Unlock()
	return nil
}

// Webhook returns the configured destination URL, empty when disabled.
func (d *Dispatcher) Webhook() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.webhookURL
}

// Enabled reports whether a destination is configured.
func (d *Dispatcher) Enabled() bool {
	return d.Webhook() != ""
}

func validWebhook(url string) bool {
	for _, p := range webhookPrefixes {
		if strings.HasPrefix(url, p) {
			return true
		}
	}
	return false
}

// ShouldNotify reports whether an event is worth forwarding: rare, or
// resolved price above the threshold.
func (d *Dispatcher) ShouldNotify(ev model.LootEvent) bool {
	if ev.Tier.IsRare {
		return true
	}
	return ev.EstimatedPrice != nil && *ev.EstimatedPrice > d.threshold
}

// MaybeNotify forwards the event when a destination is configured and
// the event qualifies. Delivery errors are logged and swallowed.
func (d *Dispatcher) MaybeNotify(ev model.LootEvent) {
	url := d.Webhook()
	if url == "" || !d.ShouldNotify(ev) {
		return
	}
	if err := d.post(url, d.lootEmbed(ev)); err != nil {
		d.logger.Warn("webhook delivery failed",
			zap.String("item_id", ev.ItemID),
			zap.Error(err))
	}
}

// SendTest validates the given URL and posts a test embed to it,
// without requiring it to be saved first.
func (d *Dispatcher) SendTest(url string) error {
	url = strings.TrimSpace(url)
	if !validWebhook(url) {
		return ErrInvalidWebhook
	}
	return d.post(url, embed{
		Title:       "Loot Logger - Test",
		Description: "Webhook configured successfully!",
		Color:       fallbackColor,
		Footer:      embedFooter{Text: footerText},
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}

// SendStatus posts a session status line (capture online/offline).
func (d *Dispatcher) SendStatus(message string, online bool) {
	url := d.Webhook()
	if url == "" {
		return
	}
	color := 0x22C55E
	if !online {
		color = 0xEF4444
	}
	if err := d.post(url, embed{
		Description: message,
		Color:       color,
		Footer:      embedFooter{Text: footerText},
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		d.logger.Warn("webhook status delivery failed", zap.Error(err))
	}
}

func (d *Dispatcher) lootEmbed(ev model.LootEvent) embed {
	tierLabel := ev.Tier.Display
	if tierLabel == "" {
		tierLabel = "N/A"
	}

	color := fallbackColor
	if info, ok := d.tiers.Parse(ev.ItemID); ok {
		if c, err := parseHexColor(tier.BaseColor(info.Tier)); err == nil {
			color = c
		}
	}

	return embed{
		Title:       ev.ItemName,
		Description: fmt.Sprintf("**Quantity:** %d\n**Tier:** %s", ev.Quantity, tierLabel),
		Color:       color,
		Thumbnail:   &embedMedia{URL: fmt.Sprintf(iconURLFormat, ev.ItemID)},
		Fields: []embedField{
			{Name: "Looted by", Value: ev.LootedBy.FormatName(), Inline: true},
			{Name: "Origin", Value: model.DisplayOrigin(ev.LootedFrom.Name), Inline: true},
		},
		Footer:    embedFooter{Text: footerText},
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
	}
}

func (d *Dispatcher) post(url string, e embed) error {
	body, err := json.Marshal(webhookPayload{Embeds: []embed{e}})
	if err != nil {
		return err
	}
	resp, err := d.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("notify: http %d", resp.StatusCode)
	}
	return nil
}

func parseHexColor(s string) (int, error) {
	var c int
	_, err := fmt.Sscanf(strings.TrimPrefix(s, "#"), "%x", &c)
	return c, err
}
