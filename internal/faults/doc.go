// Package faults defines the error taxonomy shared by every render stage.
//
// Stage code tags failures with one of the exported marker errors through
// Wrap so the orchestrator and CLI can classify them with errors.Is without
// parsing messages. Markers describe the class of failure (configuration,
// fleet, merge, I/O); the wrapped error keeps the underlying cause.
package faults
