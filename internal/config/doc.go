// Package config loads, normalizes, and validates linksort configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional linksort.env next to the
// config file, and honours environment fallbacks such as OPENROUTER_API_KEY.
// The Config type centralizes every knob the daemon and CLI need: batch
// sizing, the ordered provider chain, the durable job store backend, and
// notification targets.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
