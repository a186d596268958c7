package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ServiceName    string           `toml:"ServiceName"`
	Environment    string           `toml:"Environment"`
	DataDir        string           `toml:"DataDir"`
	TickInterval   string           `toml:"TickInterval"`
	LogLevel       string           `toml:"LogLevel"`
	RedactAccounts bool             `toml:"RedactAccounts"`
	TokenSymbol    string           `toml:"TokenSymbol"`
	TokenName      string           `toml:"TokenName"`
	TokenDecimals  uint8            `toml:"TokenDecimals"`
	Bonus          Bonus            `toml:"bonus"`
	API            API              `toml:"api"`
	Telemetry      Telemetry        `toml:"telemetry"`
	Genesis        []GenesisAccount `toml:"genesis"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
	}
	applyDefaults(cfg)
	return cfg, nil
}

// TickPeriod parses TickInterval.
func (c *Config) TickPeriod() (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(c.TickInterval))
	if err != nil {
		return 0, fmt.Errorf("invalid TickInterval: %w", err)
	}
	return d, nil
}

// Skew parses ClockSkew. An empty value yields zero, which the authenticator
// replaces with its default.
func (a APIAuth) Skew() (time.Duration, error) {
	raw := strings.TrimSpace(a.ClockSkew)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid api.auth.ClockSkew %q", a.ClockSkew)
	}
	return d, nil
}

// Default returns the configuration written on first start.
func Default() *Config {
	cfg := &Config{
		ServiceName:    "bonusd",
		Environment:    "local",
		DataDir:        "./bonus-data",
		TickInterval:   "1s",
		LogLevel:       "info",
		TokenSymbol:    "BNX",
		TokenName:      "Bonus Token",
		TokenDecimals:  18,
		Bonus: Bonus{
			UnitPrice: "100",
			AutoInit:  true,
			AutoStart: true,
		},
		API: API{
			ListenAddress: ":9102",
			RatePerSecond: 20,
			Burst:         40,
		},
		Genesis: []GenesisAccount{},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "bonusd"
	}
	if strings.TrimSpace(cfg.TickInterval) == "" {
		cfg.TickInterval = "1s"
	}
	if strings.TrimSpace(cfg.TokenSymbol) == "" {
		cfg.TokenSymbol = "BNX"
	}
	if strings.TrimSpace(cfg.TokenName) == "" {
		cfg.TokenName = cfg.TokenSymbol
	}
	if cfg.Genesis == nil {
		cfg.Genesis = []GenesisAccount{}
	}
	cfg.Bonus.applyDefaults()
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
