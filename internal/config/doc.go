// Package config loads, normalizes, and validates crmflow configuration data.
//
// It supplies repository defaults (XDG data directory, API bind address,
// reminder cadence), expands user paths (including tilde shortcuts), reads TOML
// files, and honours environment fallbacks such as TWILIO_AUTH_TOKEN, optionally
// seeded from a .env file that sits next to the configuration file.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
