package demorequest

import (
	"fmt"
	"time"

	"demo-backend/internal/common/config"
)

type Config struct {
	// Timeout bounds one full create operation including the external call.
	Timeout time.Duration `mapstructure:"timeout"`

	// StaleAfter is how long a processing row may sit before the reconciler
	// treats it as stuck.
	StaleAfter time.Duration `mapstructure:"stale_after"`

	// SweepInterval is the pause between reconciler sweeps.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:       35 * time.Second,
		StaleAfter:    5 * time.Minute,
		SweepInterval: time.Minute,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.StaleAfter <= 0 {
		return fmt.Errorf("stale_after must be positive")
	}
	if c.StaleAfter <= c.Timeout {
		return fmt.Errorf("stale_after (%s) must be greater than timeout (%s) so the reconciler never sweeps an in-flight request", c.StaleAfter, c.Timeout)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive")
	}
	return nil
}

// ConfigFromApp builds the workflow config from the application config.
func ConfigFromApp(appCfg *config.Config) *Config {
	cfg := DefaultConfig()
	if appCfg == nil {
		return cfg
	}
	if appCfg.Demo.Timeout > 0 {
		cfg.Timeout = time.Duration(appCfg.Demo.Timeout) * time.Millisecond
	}
	if appCfg.Demo.StaleAfter > 0 {
		cfg.StaleAfter = appCfg.Demo.StaleAfterDuration()
	}
	if appCfg.Demo.SweepInterval > 0 {
		cfg.SweepInterval = appCfg.Demo.SweepIntervalDuration()
	}
	return cfg
}
