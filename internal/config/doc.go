// Package config loads, normalizes, and validates the TOML configuration
// consumed by every dubmaster subsystem.
//
// Load resolves the config path (explicit flag, ~/.config/dubmaster/config.toml,
// or ./dubmaster.toml), merges the file over Default(), expands ~ in path
// fields, fills missing values, and rejects configurations that cannot work.
package config
