// Package config loads the aggregator's startup configuration from a YAML
// file, overlaid with environment variables for local `.env` convenience.
// There is no live-reload requirement for the core; configuration is read
// once at process start.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// ExchangeConfig controls whether an adapter starts and the volume band its
// symbols must fall in to be admitted.
type ExchangeConfig struct {
	Enabled       bool            `yaml:"enabled"`
	MinUSDVolume  decimal.Decimal `yaml:"min_usd_volume"`
	MaxUSDVolume  decimal.Decimal `yaml:"max_usd_volume"`
}

// StreamsConfig toggles which upstream feeds adapters subscribe to.
type StreamsConfig struct {
	Tickers bool `yaml:"tickers"`
	Trades  bool `yaml:"trades"` // reserved; trades are out of core scope
}

// ChannelsConfig sizes the two bounded, drop-oldest queues.
type ChannelsConfig struct {
	RawCapacity    int `yaml:"raw_capacity"`
	WindowCapacity int `yaml:"window_capacity"`
}

// WindowConfig bounds the rolling-window engine's memory footprint.
type WindowConfig struct {
	Size           time.Duration `yaml:"size"`
	HardCapPoints  int           `yaml:"hard_cap_points"`
	MaxWindows     int           `yaml:"max_windows"`
	MaxLatestTicks int           `yaml:"max_latest_ticks"`
}

// SignalsConfig parameterizes the threshold state machine.
type SignalsConfig struct {
	EntryThresholdPct decimal.Decimal `yaml:"entry_threshold_pct"`
	ExitThresholdPct  decimal.Decimal `yaml:"exit_threshold_pct"`
	Cooldown          time.Duration   `yaml:"cooldown"`
}

// ChartConfig parameterizes the pull-path chart-frame query.
type ChartConfig struct {
	RecentWindow   time.Duration `yaml:"recent_window"`
	QuantileWindow int           `yaml:"quantile_window"`
	UpperQuantile  float64       `yaml:"upper_quantile"`
	LowerQuantile  float64       `yaml:"lower_quantile"`
}

// WSConfig parameterizes the WebSocket fan-out layer.
type WSConfig struct {
	PerSendTimeout time.Duration `yaml:"per_send_timeout"`
}

// Config is the full recognized configuration surface from spec §6.2.
type Config struct {
	Port      string                    `yaml:"port"`
	Exchanges map[string]ExchangeConfig `yaml:"exchanges"`
	Streams   StreamsConfig             `yaml:"streams"`
	Channels  ChannelsConfig            `yaml:"channels"`
	Window    WindowConfig              `yaml:"window"`
	Signals   SignalsConfig             `yaml:"signals"`
	Chart     ChartConfig               `yaml:"chart"`
	WS        WSConfig                  `yaml:"ws"`
}

// Defaults returns the configuration defaults documented in spec §6.2,
// before any file or environment overlay is applied.
func Defaults() Config {
	return Config{
		Port: "8080",
		Streams: StreamsConfig{
			Tickers: true,
		},
		Channels: ChannelsConfig{
			RawCapacity:    100_000,
			WindowCapacity: 100_000,
		},
		Window: WindowConfig{
			Size:           5 * time.Minute,
			HardCapPoints:  5000,
			MaxWindows:     10_000,
			MaxLatestTicks: 50_000,
		},
		Signals: SignalsConfig{
			EntryThresholdPct: decimal.NewFromFloat(0.35),
			ExitThresholdPct:  decimal.NewFromFloat(0.05),
			Cooldown:          10 * time.Second,
		},
		Chart: ChartConfig{
			RecentWindow:   15 * time.Minute,
			QuantileWindow: 200,
			UpperQuantile:  0.97,
			LowerQuantile:  0.03,
		},
		WS: WSConfig{
			PerSendTimeout: 250 * time.Millisecond,
		},
	}
}

// Load reads the YAML config at path (falling back to defaults if the file
// is absent), loads a local .env for PORT overrides, and validates the
// result. Any malformed value or missing required exchange section causes
// an error — the caller is expected to log it and exit non-zero before
// accepting any traffic, per the startup-configuration-error taxonomy.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the rest of the system assumes hold.
func (c *Config) Validate() error {
	if len(c.Exchanges) == 0 {
		return fmt.Errorf("config: at least one exchange must be configured")
	}
	enabledCount := 0
	for name, ex := range c.Exchanges {
		if !ex.Enabled {
			continue
		}
		enabledCount++
		if ex.MaxUSDVolume.LessThan(ex.MinUSDVolume) {
			return fmt.Errorf("config: exchanges.%s.max_usd_volume must be >= min_usd_volume", name)
		}
	}
	if enabledCount == 0 {
		return fmt.Errorf("config: at least one exchange must be enabled")
	}
	if c.Channels.RawCapacity <= 0 || c.Channels.WindowCapacity <= 0 {
		return fmt.Errorf("config: channel capacities must be positive")
	}
	if c.Window.Size <= 0 {
		return fmt.Errorf("config: window.size must be positive")
	}
	if c.Window.HardCapPoints <= 0 || c.Window.MaxWindows <= 0 || c.Window.MaxLatestTicks <= 0 {
		return fmt.Errorf("config: window capacities must be positive")
	}
	if c.Signals.Cooldown < 0 {
		return fmt.Errorf("config: signals.cooldown must not be negative")
	}
	if c.Chart.QuantileWindow <= 0 {
		return fmt.Errorf("config: chart.quantile_window must be positive")
	}
	if c.Chart.UpperQuantile <= 0 || c.Chart.UpperQuantile > 1 || c.Chart.LowerQuantile <= 0 || c.Chart.LowerQuantile > 1 {
		return fmt.Errorf("config: chart quantiles must be in (0,1]")
	}
	if c.WS.PerSendTimeout <= 0 {
		return fmt.Errorf("config: ws.per_send_timeout must be positive")
	}
	return nil
}
