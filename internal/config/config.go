package config

import (
	"fmt"
	"time"

	"github.com/loykin/tempchan/internal/catalog"
	"github.com/loykin/tempchan/internal/logger"
	"github.com/loykin/tempchan/internal/manager"
	"github.com/loykin/tempchan/internal/slot"
	"github.com/spf13/viper"
)

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	Server   ServerConfig   `toml:"server" mapstructure:"server"`
	Store    StoreConfig    `toml:"store" mapstructure:"store"`
	Eviction EvictionConfig `toml:"eviction" mapstructure:"eviction"`
	Pick     PickConfig     `toml:"pick" mapstructure:"pick"`
	Metrics  MetricsConfig  `toml:"metrics" mapstructure:"metrics"`
	History  HistoryConfig  `toml:"history" mapstructure:"history"`
	Log      *logger.Config `toml:"log" mapstructure:"log"`
	Groups   []GroupConfig  `toml:"groups" mapstructure:"groups"`
}

type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type StoreConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type EvictionConfig struct {
	Mode     string        `toml:"mode" mapstructure:"mode"`
	Grace    time.Duration `toml:"grace" mapstructure:"grace"`
	Lifetime time.Duration `toml:"lifetime" mapstructure:"lifetime"`
}

type PickConfig struct {
	Mode          string        `toml:"mode" mapstructure:"mode"`
	PendingTTL    time.Duration `toml:"pending_ttl" mapstructure:"pending_ttl"`
	SweepInterval time.Duration `toml:"sweep_interval" mapstructure:"sweep_interval"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled"`
}

type HistoryConfig struct {
	ClickHouseDSN string `toml:"clickhouse_dsn" mapstructure:"clickhouse_dsn"`
	Table         string `toml:"table" mapstructure:"table"`
}

type GroupConfig struct {
	ID        string   `toml:"id" mapstructure:"id"`
	Label     string   `toml:"label" mapstructure:"label"`
	Container string   `toml:"container" mapstructure:"container"`
	Trigger   string   `toml:"trigger" mapstructure:"trigger"`
	Presets   []string `toml:"presets" mapstructure:"presets"`
}

// Load reads and validates a TOML config file, filling defaults for
// everything optional.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, err
	}
	fc.applyDefaults()
	if err := fc.validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

func (fc *FileConfig) applyDefaults() {
	if fc.Server.Listen == "" {
		fc.Server.Listen = "127.0.0.1:8080"
	}
	if fc.Eviction.Mode == "" {
		fc.Eviction.Mode = string(slot.ModeEmptyGrace)
	}
	if fc.Eviction.Grace <= 0 {
		fc.Eviction.Grace = 2 * time.Minute
	}
	if fc.Pick.Mode == "" {
		fc.Pick.Mode = string(manager.PickAuto)
	}
	if fc.Pick.PendingTTL <= 0 {
		fc.Pick.PendingTTL = time.Minute
	}
	if fc.Pick.SweepInterval <= 0 {
		fc.Pick.SweepInterval = 30 * time.Second
	}
	if fc.History.Table == "" {
		fc.History.Table = "slot_history"
	}
}

func (fc *FileConfig) validate() error {
	if fc.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}
	if len(fc.Groups) == 0 {
		return fmt.Errorf("at least one [[groups]] entry is required")
	}
	if _, err := fc.Catalog(); err != nil {
		return err
	}
	return fc.ManagerConfig().Validate()
}

// Catalog builds the validated group catalog from the config.
func (fc *FileConfig) Catalog() (*catalog.Catalog, error) {
	groups := make([]catalog.Group, 0, len(fc.Groups))
	for _, g := range fc.Groups {
		groups = append(groups, catalog.Group{
			ID:        g.ID,
			Label:     g.Label,
			Container: g.Container,
			Trigger:   g.Trigger,
			Presets:   g.Presets,
		})
	}
	return catalog.New(groups)
}

// ManagerConfig maps the eviction and pick sections onto the manager's
// configuration.
func (fc *FileConfig) ManagerConfig() manager.Config {
	return manager.Config{
		Policy: slot.Policy{
			Mode:     slot.EvictionMode(fc.Eviction.Mode),
			Grace:    fc.Eviction.Grace,
			Lifetime: fc.Eviction.Lifetime,
		},
		PickMode:   manager.PickMode(fc.Pick.Mode),
		PendingTTL: fc.Pick.PendingTTL,
	}
}
