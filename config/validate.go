package config

import (
	"fmt"
	"strings"
	"time"
)

// MinTickInterval bounds how fast the node may drive the engine.
const MinTickInterval = 10 * time.Millisecond

const minHMACSecret = 32

// ValidateConfig checks every section before the node uses it.
func ValidateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("config: nil config")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	period, err := c.TickPeriod()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if period < MinTickInterval {
		return fmt.Errorf("config: TickInterval below %s", MinTickInterval)
	}
	params, err := c.Bonus.Params()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Bonus.AutoInit {
		price, err := c.Bonus.InitialUnitPrice()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if price.Cmp(params.MinUnitPrice) <= 0 || price.Cmp(params.MaxUnitPrice) > 0 {
			return fmt.Errorf("config: bonus.UnitPrice %s outside (%s, %s]", price, params.MinUnitPrice, params.MaxUnitPrice)
		}
	}
	if c.Bonus.AutoStart && !c.Bonus.AutoInit {
		return fmt.Errorf("config: bonus.AutoStart requires bonus.AutoInit")
	}
	if _, err := c.Allocations(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.API.RatePerSecond < 0 || c.API.Burst < 0 {
		return fmt.Errorf("config: api rate limits must not be negative")
	}
	if c.API.Auth.Enabled {
		if len(strings.TrimSpace(c.API.Auth.HMACSecret)) < minHMACSecret {
			return fmt.Errorf("config: api.auth.HMACSecret must be at least %d bytes", minHMACSecret)
		}
		if _, err := c.API.Auth.Skew(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if c.Telemetry.Metrics || c.Telemetry.Traces {
		if strings.TrimSpace(c.ServiceName) == "" {
			return fmt.Errorf("config: telemetry requires ServiceName")
		}
	}
	return nil
}
