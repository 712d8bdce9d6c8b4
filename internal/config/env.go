package config

import (
	"fmt"
	"strconv"
)

// Environment variables recognised by the daemon.
const (
	EnvConfigPath = "SPRAYPAINT_CONFIG"
	EnvListenPort = "SPRAYPAINT_LISTEN_PORT"
	EnvDBPath     = "SPRAYPAINT_DB"
)

// ApplyEnv overrides fields from environment variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvListenPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvListenPort, err)
		}
		c.ListenPort = &port
	}
	return c.Validate()
}
