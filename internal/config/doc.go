// Package config loads DropIt client settings.
//
// # Resolution Order
//
// Load layers settings with viper, later sources winning:
//
//  1. Built-in defaults
//  2. The TOML file (default ~/.config/dropit/config.toml)
//  3. DROPIT_* environment variables (DROPIT_API_BASE, DROPIT_LOG_LEVEL, ...)
//  4. Command-line flags that were explicitly set
//
// A missing config file is not an error.
//
// # Defaults
//
//   - api_base: http://localhost:8080/api
//   - data_dir: ~/.local/share/dropit
//   - auto_refresh_minutes: 5 (0 disables)
//   - default map center: Seoul City Hall, zoom 12
//
// # TOML Format
//
//	api_base = "https://dropit.example.com/api"
//	data_dir = "~/.local/share/dropit"
//	log_level = "debug"
//	request_timeout = "15s"
//	nearby_radius_km = 3.0
//
// Tilde expansion is applied to the config path and data_dir.
package config
