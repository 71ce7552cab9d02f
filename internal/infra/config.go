package infra

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the full daemon configuration, loaded from YAML and then
// overridden by environment variables.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	House struct {
		Name   string `yaml:"name"`
		FeeBps uint16 `yaml:"fee_bps"`
	} `yaml:"house"`

	Engine struct {
		BidCutoff string `yaml:"bid_cutoff"` // "end" or "grace"
		SlotMS    int    `yaml:"slot_ms"`    // wall-clock slot duration
		InboxSize int    `yaml:"inbox_size"`
	} `yaml:"engine"`

	Storage struct {
		Path string `yaml:"path"` // empty = platform default
	} `yaml:"storage"`

	Feed struct {
		Addr string `yaml:"addr"` // empty = feed disabled
	} `yaml:"feed"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.House.Name == "" || len(c.House.Name) >= 32 {
		return fmt.Errorf("house name must be 1..31 bytes: %q", c.House.Name)
	}
	if c.House.FeeBps > 10_000 {
		return fmt.Errorf("house fee must be at most 10000 bps: %d", c.House.FeeBps)
	}
	if c.Engine.BidCutoff != "end" && c.Engine.BidCutoff != "grace" {
		return fmt.Errorf("bid cutoff must be \"end\" or \"grace\": %q", c.Engine.BidCutoff)
	}
	if c.Engine.SlotMS <= 0 {
		return fmt.Errorf("slot duration must be positive")
	}
	if c.Engine.InboxSize <= 0 {
		return fmt.Errorf("inbox size must be positive")
	}
	return nil
}

// overrideWithEnv applies environment overrides when present.
func overrideWithEnv(cfg *Config) {
	if name := os.Getenv("AUCTION_HOUSE_NAME"); name != "" {
		cfg.House.Name = name
	}
	if fee := os.Getenv("AUCTION_HOUSE_FEE_BPS"); fee != "" {
		if v, err := strconv.ParseUint(fee, 10, 16); err == nil {
			cfg.House.FeeBps = uint16(v)
		}
	}
	if addr := os.Getenv("AUCTION_FEED_ADDR"); addr != "" {
		cfg.Feed.Addr = addr
	}
	if path := os.Getenv("AUCTION_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
}
