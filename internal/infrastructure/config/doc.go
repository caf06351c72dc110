// Package config provides YAML-based configuration loading with
// environment variable overrides and validation.
//
// Configuration is resolved in three layers: built-in defaults, the YAML
// file, then TVCAST_* environment variables. Validate runs after all
// layers so a deployment fails fast on a bad stream base URL or port
// rather than at first use.
package config
