// Package config loads the service configuration.
//
// Configuration is loaded from multiple sources in priority order (highest wins):
//  1. Default values in code (lowest priority)
//  2. base.yaml - Common configuration for all environments
//  3. {environment}.yaml - Environment-specific overrides
//  4. local.yaml - Local developer overrides, development only
//  5. Environment variables (highest priority)
//
// # File Structure
//
//	config/
//	├── base.yaml           # Base configuration for all environments
//	├── development.yaml    # Development environment overrides
//	├── production.yaml     # Production environment overrides
//	└── local.yaml          # Local overrides (gitignored)
//
// # Usage
//
//	loader := config.NewLoader("config", config.Production)
//	cfg, err := loader.Load()
//	if err != nil {
//	    log.Fatal("Failed to load configuration:", err)
//	}
//	fmt.Printf("Configuration loaded from: %v\n", cfg.LoadedFrom)
//
// In development a Watcher reloads the files on change and hands the new
// configuration to registered callbacks.
package config
