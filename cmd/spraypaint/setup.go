package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/banshee-data/spraypaint/internal/config"
)

// loadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is only
// an error when required is true.
func loadEnvFile(path string, required bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// resolveConfigPath picks the config file: an explicit flag wins, then the
// environment, then the default path.
func resolveConfigPath(flagValue string, flagSet bool, lookup func(string) (string, bool)) (path string, explicit bool) {
	if flagSet {
		return flagValue, true
	}
	if v, ok := lookup(config.EnvConfigPath); ok && v != "" {
		return v, true
	}
	return config.DefaultConfigPath, false
}

// loadConfig reads the config file and applies environment overrides. When
// the default file is absent the built-in defaults are used.
func loadConfig(path string, explicit bool, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, fs.ErrNotExist):
		log.Printf("config %s not found, using built-in defaults", path)
		cfg = config.Empty()
	default:
		return nil, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	return cfg, nil
}

// resolveDBPath returns the journal path from the flag or environment. An
// empty result disables the journal.
func resolveDBPath(flagValue string, lookup func(string) (string, bool)) string {
	if flagValue != "" {
		return flagValue
	}
	if v, ok := lookup(config.EnvDBPath); ok {
		return v
	}
	return ""
}
