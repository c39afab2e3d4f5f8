package config

import (
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Price    PriceConfig    `mapstructure:"price"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

type ServerConfig struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
	// WebDir points at the dashboard's static bundle (served at /).
	WebDir string `mapstructure:"web_dir"`
}

// FeedConfig describes the upstream loot feed connection.
type FeedConfig struct {
	URL               string        `mapstructure:"url"`
	ReconnectBaseWait time.Duration `mapstructure:"reconnect_base_wait"`
	ReconnectMaxWait  time.Duration `mapstructure:"reconnect_max_wait"`
	ReadBuffer        int           `mapstructure:"read_buffer"`
}

// PriceConfig describes the market price lookup pipeline.
type PriceConfig struct {
	Servers      []PriceServer `mapstructure:"servers"`
	Default      string        `mapstructure:"default"`
	Locations    []string      `mapstructure:"locations"`
	TTL          time.Duration `mapstructure:"ttl"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchDelay   time.Duration `mapstructure:"batch_delay"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RequestsPerS float64       `mapstructure:"requests_per_s"`
	ResweepEvery time.Duration `mapstructure:"resweep_every"`
}

// PriceServer is one selectable albion-online-data region endpoint.
type PriceServer struct {
	ID   string `mapstructure:"id" json:"id"`
	Name string `mapstructure:"name" json:"name"`
	URL  string `mapstructure:"url" json:"url"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
}

type SecurityConfig struct {
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	// AllowedOrigins lists the WebSocket origins that are permitted.
	// An empty slice allows all origins (useful for local use only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type NotifyConfig struct {
	// PriceThreshold is the estimated silver value above which a loot
	// is forwarded to the webhook even when not rare.
	PriceThreshold int64         `mapstructure:"price_threshold"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.web_dir", "./web")
	v.SetDefault("feed.url", "ws://127.0.0.1:5055/feed")
	v.SetDefault("feed.reconnect_base_wait", "1s")
	v.SetDefault("feed.reconnect_max_wait", "30s")
	v.SetDefault("feed.read_buffer", 4096)
	v.SetDefault("price.default", "west")
	v.SetDefault("price.locations", []string{
		"Caerleon", "Bridgewatch", "Martlock", "Thetford", "FortSterling", "Lymhurst",
	})
	v.SetDefault("price.ttl", "5m")
	v.SetDefault("price.batch_size", 10)
	v.SetDefault("price.batch_delay", "200ms")
	v.SetDefault("price.timeout", "10s")
	v.SetDefault("price.requests_per_s", 20)
	v.SetDefault("price.resweep_every", "2m")
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/lootlogger.db")
	v.SetDefault("database.mysql_max_open", 10)
	v.SetDefault("database.mysql_max_idle", 5)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("notify.price_threshold", 100000)
	v.SetDefault("notify.timeout", "10s")

	// A missing config file is fine: everything has a default.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*fs.PathError); !ok {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if len(cfg.Price.Servers) == 0 {
		cfg.Price.Servers = DefaultPriceServers()
	}
	return cfg, nil
}

// DefaultPriceServers returns the three public albion-online-data regions.
func DefaultPriceServers() []PriceServer {
	return []PriceServer{
		{ID: "west", Name: "Americas", URL: "https://west.albion-online-data.com"},
		{ID: "europe", Name: "Europe", URL: "https://europe.albion-online-data.com"},
		{ID: "east", Name: "Asia", URL: "https://east.albion-online-data.com"},
	}
}
