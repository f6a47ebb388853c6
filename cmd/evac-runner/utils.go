package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riverwatch/evacroute/pkg/config"
)

// loadConfig loads the configuration from file, auto-generating if needed
func loadConfig() (*config.Config, error) {
	// Determine config file path
	configPath := cfgFile
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Check if config exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Auto-generate default config
		fmt.Printf("Config file not found, creating default configuration at: %s\n", configPath)
		fmt.Println("   Edit this file to customize settings (graph source, raster root, upstream URL, ...)")
		fmt.Println()

		cfg := config.DefaultConfig()
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}

		return cfg, nil
	}

	// Load existing configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// parseSetFlags parses --set flags into a map
func parseSetFlags(setFlags []string) map[string]string {
	overrides := make(map[string]string)
	for _, flag := range setFlags {
		parts := strings.SplitN(flag, "=", 2)
		if len(parts) == 2 {
			overrides[parts[0]] = parts[1]
		}
	}
	return overrides
}

// applyRunOverrides applies --set key=value pairs to the run parameters.
// Recognized keys: mode, ticks, tick_interval_ms.
func applyRunOverrides(overrides map[string]string, mode *string, maxTicks *int64, cfg *config.Config) error {
	for key, value := range overrides {
		switch key {
		case "mode":
			*mode = value
		case "ticks":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid ticks override %q", value)
			}
			*maxTicks = n
		case "tick_interval_ms":
			ms, err := strconv.Atoi(value)
			if err != nil || ms < 1 {
				return fmt.Errorf("invalid tick_interval_ms override %q", value)
			}
			cfg.Tick.Interval = time.Duration(ms) * time.Millisecond
		default:
			return fmt.Errorf("unknown --set key %q", key)
		}
	}
	return nil
}
