// Package main hosts the blenderer CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration, builds the structured
// logger, and hands an immutable render.Options value to the orchestrator.
// Planning, history, and doctor commands are read-only views over the same
// internal packages.
package main
