// Package config loads, normalizes, and validates pantry configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY, including values exported from a local .env file.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, a known asset backend, and clear validation errors.
package config
