package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all shell configuration.
type Config struct {
	Server    ServerConfig
	Catalog   CatalogConfig
	Runtime   RuntimeConfig
	Display   DisplayConfig
	Animation AnimationConfig
	Pressure  PressureConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Notify    NotifyConfig
}

// ServerConfig holds control API configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// CatalogConfig holds where application descriptors are found.
type CatalogConfig struct {
	Dir     string `envconfig:"APPS_DIR" default:"/usr/share/shell/apps"`
	Pattern string `envconfig:"APPS_PATTERN" default:"**/*.{appdef,toml,yaml,yml,json}"`
	BinDir  string `envconfig:"BIN_DIR" default:"/usr/bin"`
	DataDir string `envconfig:"DATA_DIR" default:"/usr/share/shell"`
}

// RuntimeConfig holds process and loop settings.
type RuntimeConfig struct {
	Dir             string        `envconfig:"RUNTIME_DIR" default:"/run/shell"`
	PIDFile         string        `envconfig:"PID_FILE" default:"shell.pid"`
	ProcMount       string        `envconfig:"PROC_MOUNT" default:"/proc"`
	QueueSize       int           `envconfig:"EVENT_QUEUE_SIZE" default:"256"`
	FrameInterval   time.Duration `envconfig:"FRAME_INTERVAL" default:"16ms"`
	OwnerMaxDepth   int           `envconfig:"OWNER_MAX_DEPTH" default:"4"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

// PIDPath returns the absolute pid file path
func (r RuntimeConfig) PIDPath() string {
	if filepath.IsAbs(r.PIDFile) {
		return r.PIDFile
	}
	return filepath.Join(r.Dir, r.PIDFile)
}

// DisplayConfig holds the screen layout.
type DisplayConfig struct {
	Width     int    `envconfig:"SCREEN_WIDTH" default:"800"`
	Height    int    `envconfig:"SCREEN_HEIGHT" default:"480"`
	BarHeight int    `envconfig:"STATUSBAR_HEIGHT" default:"40"`
	OSKHeight int    `envconfig:"OSK_HEIGHT" default:"200"`
	OSKApp    string `envconfig:"OSK_APP"`
}

// AnimationConfig holds the startup animation options. OptionsFile, when
// set, overrides them and is watched for changes.
type AnimationConfig struct {
	Enabled       bool          `envconfig:"ANIMATIONS" default:"true"`
	ShowDuration  time.Duration `envconfig:"SHOW_DURATION" default:"300ms"`
	HideDuration  time.Duration `envconfig:"HIDE_DURATION" default:"300ms"`
	SlideDuration time.Duration `envconfig:"SLIDE_DURATION" default:"400ms"`
	Opacity       bool          `envconfig:"ANIMATE_OPACITY" default:"true"`
	Zoom          bool          `envconfig:"ANIMATE_ZOOM" default:"true"`
	SyncGrace     time.Duration `envconfig:"SYNC_GRACE" default:"500ms"`
	OptionsFile   string        `envconfig:"OPTIONS_FILE"`
}

// PressureConfig holds memory monitor thresholds.
type PressureConfig struct {
	Enabled          bool          `envconfig:"PRESSURE_ENABLED" default:"true"`
	LowRatio         float64       `envconfig:"PRESSURE_LOW" default:"0.85"`
	CriticalRatio    float64       `envconfig:"PRESSURE_CRITICAL" default:"0.95"`
	NormalInterval   time.Duration `envconfig:"PRESSURE_INTERVAL" default:"4s"`
	LowInterval      time.Duration `envconfig:"PRESSURE_LOW_INTERVAL" default:"1s"`
	CriticalInterval time.Duration `envconfig:"PRESSURE_CRITICAL_INTERVAL" default:"500ms"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// NotifyConfig holds the optional webhook sink.
type NotifyConfig struct {
	WebhookURL     string        `envconfig:"WEBHOOK_URL"`
	WebhookTimeout time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"5s"`
	WebhookRetries int           `envconfig:"WEBHOOK_RETRIES" default:"2"`
	QueueSize      int           `envconfig:"WEBHOOK_QUEUE_SIZE" default:"64"`
	Failures       uint32        `envconfig:"WEBHOOK_FAILURES" default:"5"`
	Cooldown       time.Duration `envconfig:"WEBHOOK_COOLDOWN" default:"30s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks values envconfig cannot
func (c *Config) Validate() error {
	d := c.Display
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("invalid screen size %dx%d", d.Width, d.Height)
	}
	if d.BarHeight < 0 || d.OSKHeight < 0 || d.BarHeight+d.OSKHeight > d.Height {
		return fmt.Errorf("bar height %d and keyboard height %d do not fit a %d pixel screen", d.BarHeight, d.OSKHeight, d.Height)
	}
	p := c.Pressure
	if p.LowRatio <= 0 || p.LowRatio > p.CriticalRatio || p.CriticalRatio > 1 {
		return fmt.Errorf("invalid pressure ratios low=%v critical=%v", p.LowRatio, p.CriticalRatio)
	}
	if c.Runtime.QueueSize <= 0 {
		return fmt.Errorf("event queue size must be positive, got %d", c.Runtime.QueueSize)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "127.0.0.1",
		},
		Catalog: CatalogConfig{
			Dir:     "/usr/share/shell/apps",
			Pattern: "**/*.{appdef,toml,yaml,yml,json}",
			BinDir:  "/usr/bin",
			DataDir: "/usr/share/shell",
		},
		Runtime: RuntimeConfig{
			Dir:             "/run/shell",
			PIDFile:         "shell.pid",
			ProcMount:       "/proc",
			QueueSize:       256,
			FrameInterval:   16 * time.Millisecond,
			OwnerMaxDepth:   4,
			ShutdownTimeout: 5 * time.Second,
		},
		Display: DisplayConfig{
			Width:     800,
			Height:    480,
			BarHeight: 40,
			OSKHeight: 200,
		},
		Animation: AnimationConfig{
			Enabled:       true,
			ShowDuration:  300 * time.Millisecond,
			HideDuration:  300 * time.Millisecond,
			SlideDuration: 400 * time.Millisecond,
			Opacity:       true,
			Zoom:          true,
			SyncGrace:     500 * time.Millisecond,
		},
		Pressure: PressureConfig{
			Enabled:          true,
			LowRatio:         0.85,
			CriticalRatio:    0.95,
			NormalInterval:   4 * time.Second,
			LowInterval:      time.Second,
			CriticalInterval: 500 * time.Millisecond,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Notify: NotifyConfig{
			WebhookTimeout: 5 * time.Second,
			WebhookRetries: 2,
			QueueSize:      64,
			Failures:       5,
			Cooldown:       30 * time.Second,
		},
	}
}
