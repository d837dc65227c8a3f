package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
	Trade    TradeConfig    `mapstructure:"trade"`
	Lock     LockConfig     `mapstructure:"lock"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | sqlite_memory | mysql
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
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTTTL    time.Duration `mapstructure:"jwt_ttl"`

	// HTTP entry rate limit (per-IP token bucket).
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`

	// Per-session, per-action token bucket consulted by the player-state
	// validator before any sensitive operation.
	ActionRPS   float64 `mapstructure:"action_rps"`
	ActionBurst int     `mapstructure:"action_burst"`

	// Sliding-window abuse detection thresholds.
	SuspiciousFailures int           `mapstructure:"suspicious_failures"`
	FailureWindow      time.Duration `mapstructure:"failure_window"`
	SuspiciousAttempts int           `mapstructure:"suspicious_attempts"`
	AttemptWindow      time.Duration `mapstructure:"attempt_window"`

	// A second integrity violation within this window after the first
	// escalates to an account suspension.
	BanRepeatWindow time.Duration `mapstructure:"ban_repeat_window"`

	// Tracker table bounds.
	MaxTrackers       int           `mapstructure:"max_trackers"`
	TrackerIdleEvict  time.Duration `mapstructure:"tracker_idle_evict"`
	TrackerEvictBatch int           `mapstructure:"tracker_evict_batch"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`

	// AllowedOrigins lists the WebSocket origins that are permitted.
	// An empty slice allows all origins (useful for local development only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type TradeConfig struct {
	MaxItems int `mapstructure:"max_items"`
}

type LockConfig struct {
	MaxTokens  int `mapstructure:"max_tokens"`
	EvictBatch int `mapstructure:"evict_batch"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

type GameConfig struct {
	InventoryCapacity int `mapstructure:"inventory_capacity"`
	DigimonSlots      int `mapstructure:"digimon_slots"`
	MinHatchLevel     int `mapstructure:"min_hatch_level"`
	MaxDigimonName    int `mapstructure:"max_digimon_name"`

	// ItemsPath points at the YAML item table loaded into the catalog
	// at startup.
	ItemsPath string `mapstructure:"items_path"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.port", 7607)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/game.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("security.jwt_ttl", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("security.action_rps", 5)
	v.SetDefault("security.action_burst", 10)
	v.SetDefault("security.suspicious_failures", 3)
	v.SetDefault("security.failure_window", "5m")
	v.SetDefault("security.suspicious_attempts", 10)
	v.SetDefault("security.attempt_window", "1m")
	v.SetDefault("security.ban_repeat_window", "5s")
	v.SetDefault("security.max_trackers", 10000)
	v.SetDefault("security.tracker_idle_evict", "1h")
	v.SetDefault("security.tracker_evict_batch", 1000)
	v.SetDefault("security.sweep_interval", "5m")
	v.SetDefault("trade.max_items", 8)
	v.SetDefault("lock.max_tokens", 1000)
	v.SetDefault("lock.evict_batch", 100)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "500ms")
	v.SetDefault("game.inventory_capacity", 70)
	v.SetDefault("game.digimon_slots", 5)
	v.SetDefault("game.min_hatch_level", 3)
	v.SetDefault("game.max_digimon_name", 12)
	v.SetDefault("game.items_path", "config/items.yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
