package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateFleet(); err != nil {
		return err
	}
	if err := c.validateMerge(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Workspace.StaleAfterHours < 0 {
		return errors.New("workspace.stale_after_hours must be >= 0")
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.Workers < 0 {
		return errors.New("render.workers must be >= 0 (0 uses every available core)")
	}
	if c.Render.ReservedCores < 0 {
		return errors.New("render.reserved_cores must be >= 0")
	}
	return nil
}

func (c *Config) validateFleet() error {
	switch c.Fleet.Policy {
	case PolicyWaitAll, PolicyFailFast:
	default:
		return fmt.Errorf("fleet.policy must be %q or %q, got %q", PolicyWaitAll, PolicyFailFast, c.Fleet.Policy)
	}
	if c.Fleet.JobTimeoutSeconds < 0 {
		return errors.New("fleet.job_timeout_seconds must be >= 0 (0 disables the timeout)")
	}
	if c.Fleet.TerminationGraceSeconds < 0 {
		return errors.New("fleet.termination_grace_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateMerge() error {
	if c.Merge.TimeoutSeconds <= 0 {
		return errors.New("merge.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
