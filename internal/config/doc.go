// Package config loads, normalizes, and validates dpxflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), resolves relative stage directories against paths.root_dir,
// reads TOML files, and honours the RAWCOOKED_LICENSE environment fallback.
// The Config type centralizes every knob the pipeline and CLI need so the
// stage layout, tool binaries, and worker limits are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
