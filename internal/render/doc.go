// Package render orchestrates one render session end to end.
//
// A Session walks a fixed state machine:
//
//	Initialized → Validated → Partitioned → FleetDispatched → FleetCompleted → Merged → Finalized
//
// with Failed reachable from every state. Validation reads the scene (probe or
// YAML descriptor), checks binaries and directories, and rejects frame counts
// smaller than the worker count before anything is launched. The session then
// acquires a scoped workspace, fans the frame range out to a worker fleet,
// writes the concat manifest in partition order, and merges the segments into
// the final artifact.
//
// The workspace is released on every exit path. A failure is reported once,
// as a *StageError naming the stage, and logged as exactly one ERROR record.
package render
