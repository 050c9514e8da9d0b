// Package config loads, normalizes, and validates upcase configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// UPCASE_PUBLIC_FIFO. The Config type centralizes every knob the daemon and
// the client need, so both sides of the FIFO rendezvous agree on paths and
// retry bounds from a single source.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
