// Package scene reads render settings from a .blend file and checks them
// before any worker is launched.
//
// Metadata comes from one of two places. Probe runs Blender in background
// mode with a short Python expression that prints the active scene's render
// settings as JSON. LoadDescriptor reads the same fields from a YAML file,
// which lets a render proceed without a probe round-trip (or without Blender
// on the orchestrating host).
//
// Validate rejects settings the per-range merge cannot handle: an odd scaled
// resolution and autosplit output. OutputExtension maps Blender's file and
// container formats onto the extension used for segments and the final
// artifact.
package scene
