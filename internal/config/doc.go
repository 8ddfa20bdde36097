// Package config loads, validates, and normalizes the qoed TOML
// configuration file.
package config
