// Package config handles loading and validating show core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading optional .env files into the process environment
//   - Overriding with SHOWCORE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Configuration is loaded once at startup; there is no runtime reload.
//
// Usage:
//
//	_ = config.LoadEnvFile()
//	cfg, err := config.Load("configs/showcore.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	interval := cfg.Playback.TickInterval()
package config
