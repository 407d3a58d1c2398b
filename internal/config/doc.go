// Package config loads, normalizes, and validates wordslearner configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads .env files, and honours environment
// fallbacks such as ELEVENLABS_API_KEY. The Config type centralizes every knob
// the daemon and CLI need, so the data directory, provider credentials, and
// queue timings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
