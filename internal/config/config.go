package config

import (
	"errors"
	"fmt"
)

// Config holds everything the server needs at startup. Values are bound to
// flags and BLANKS_* environment variables by the root command.
type Config struct {
	Bind        string
	Port        int
	Domain      string // cookie domain for new identities
	CardsPath   string
	CustomCards string // optional overlay file merged before catalog load
	DBPath      string
	MaxHandSize int
	Verbose     bool
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.CardsPath == "" {
		return errors.New("--cards is required")
	}
	if c.MaxHandSize < 1 {
		return fmt.Errorf("invalid max hand size: %d", c.MaxHandSize)
	}
	return nil
}
