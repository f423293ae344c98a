// Package config loads, normalizes, and validates blenderer configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// BLENDERER_BLENDER. The Config type centralizes every knob the CLI and the
// render orchestrator need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
