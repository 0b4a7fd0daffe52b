// Package config loads and hot-reloads the engine configuration: fee rates,
// global thresholds, and the per-mode tuning table.
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/quantshift/btc-perp-engine/internal/models"
)

// ModeSpec is the on-disk shape of one entry under `modes:`.
type ModeSpec struct {
	Name                string  `mapstructure:"name"`
	Style               string  `mapstructure:"style"`
	EntryCooldownSec    float64 `mapstructure:"entry_cooldown_sec"`
	BaseLeverageCap     float64 `mapstructure:"base_leverage_cap"`
	AllowRelaxed        bool    `mapstructure:"allow_relaxed"`
	InvertSignal        bool    `mapstructure:"invert_signal"`
	BasePositionPct     float64 `mapstructure:"base_position_pct"`
	MaxSizeMultiplier   float64 `mapstructure:"max_size_multiplier"`
	MakerEnabled        bool    `mapstructure:"maker_enabled"`
	MakerOffsetBps      float64 `mapstructure:"maker_offset_bps"`
	MakerTimeoutSeconds float64 `mapstructure:"maker_timeout_seconds"`
	PyramidEnabled      bool    `mapstructure:"pyramid_enabled"`
	MaxPyramid          int     `mapstructure:"max_pyramid"`
}

// FeeConfig holds the maker/taker commission and funding rate assumptions.
type FeeConfig struct {
	TakerRate   float64 `mapstructure:"taker_rate"`
	MakerRate   float64 `mapstructure:"maker_rate"`
	FundingRate float64 `mapstructure:"funding_rate"`
}

// ThresholdConfig holds the global, mode-independent numeric thresholds.
// Only PressureStaleSeconds is read, by the engine, to decide whether to
// build a pressure reader; the microstructure, whale, cascade and bridge
// packages use their own built-in constants.
type ThresholdConfig struct {
	WhaleQtyBTC         float64 `mapstructure:"whale_qty_btc"`
	VPINBucketVolume     float64 `mapstructure:"vpin_bucket_volume"`
	VPINDangerLevel      float64 `mapstructure:"vpin_danger_level"`
	VPINCriticalLevel    float64 `mapstructure:"vpin_critical_level"`
	CascadeAlertMinSec   float64 `mapstructure:"cascade_alert_min_sec"`
	PressureStaleSeconds float64 `mapstructure:"pressure_stale_seconds"`
	BridgeStaleSeconds   float64 `mapstructure:"bridge_stale_seconds"`
}

// BridgeConfig configures where the AI bridge files live.
type BridgeConfig struct {
	Directory          string  `mapstructure:"directory"`
	ReadDebounceSeconds float64 `mapstructure:"read_debounce_seconds"`
}

// Config is the full, typed engine configuration.
type Config struct {
	Symbol     string          `mapstructure:"symbol"`
	LogPath    string          `mapstructure:"log_path"`
	SessionDir string          `mapstructure:"session_dir"`
	Fees       FeeConfig       `mapstructure:"fees"`
	Thresholds ThresholdConfig `mapstructure:"thresholds"`
	Bridge     BridgeConfig    `mapstructure:"bridge"`
	Modes      []ModeSpec      `mapstructure:"modes"`
	Telegram   TelegramConfig  `mapstructure:"telegram"`
	Metrics    MetricsConfig   `mapstructure:"metrics"`
}

// TelegramConfig carries the notification bot token, reused from the
// teacher's settings surface.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

// MetricsConfig configures the /metrics and /debug/vars status server.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ModeConfigs converts the raw spec table into the models.ModeConfig form
// consumed by the mode registry.
func (c *Config) ModeConfigs() ([]models.ModeConfig, error) {
	out := make([]models.ModeConfig, 0, len(c.Modes))
	for _, m := range c.Modes {
		out = append(out, models.ModeConfig{
			Name:                m.Name,
			Style:               models.StrategyStyle(m.Style),
			EntryCooldown:       time.Duration(m.EntryCooldownSec * float64(time.Second)),
			BaseLeverageCap:     m.BaseLeverageCap,
			AllowRelaxed:        m.AllowRelaxed,
			InvertSignal:        m.InvertSignal,
			BasePositionPct:     m.BasePositionPct,
			MaxSizeMultiplier:   m.MaxSizeMultiplier,
			MakerEnabled:        m.MakerEnabled,
			MakerOffsetBps:      m.MakerOffsetBps,
			MakerTimeoutSeconds: m.MakerTimeoutSeconds,
			PyramidEnabled:      m.PyramidEnabled,
			MaxPyramid:          m.MaxPyramid,
		})
	}
	return out, nil
}

// Loader watches a config file's mtime and exposes the latest parsed
// Config along with a monotonically increasing Version, so the engine's
// tick loop can detect a mid-run reload without tearing down state.
type Loader struct {
	path string

	mu      sync.RWMutex
	cfg     *Config
	modTime time.Time
	version int64
}

// NewLoader reads cfgFile once via viper and returns a ready Loader.
func NewLoader(cfgFile string) (*Loader, error) {
	l := &Loader{path: cfgFile}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loader) reload() error {
	v := viper.New()
	v.SetConfigFile(l.path)
	v.SetEnvKeyReplacer(strings.NewReplacer("__", "."))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", l.path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
	}); err != nil {
		return fmt.Errorf("unmarshal config %s: %w", l.path, err)
	}

	info, err := os.Stat(l.path)
	if err != nil {
		return fmt.Errorf("stat config %s: %w", l.path, err)
	}

	l.mu.Lock()
	l.cfg = &cfg
	l.modTime = info.ModTime()
	atomic.AddInt64(&l.version, 1)
	l.mu.Unlock()
	return nil
}

// Current returns the most recently loaded Config and its version.
func (l *Loader) Current() (*Config, int64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg, atomic.LoadInt64(&l.version)
}

// ReloadIfUpdated checks the config file's mtime and reparses it if it
// changed since the last load. Returns true if a reload happened.
func (l *Loader) ReloadIfUpdated() (bool, error) {
	info, err := os.Stat(l.path)
	if err != nil {
		return false, fmt.Errorf("stat config %s: %w", l.path, err)
	}

	l.mu.RLock()
	unchanged := !info.ModTime().After(l.modTime)
	l.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	if err := l.reload(); err != nil {
		return false, err
	}
	return true, nil
}
