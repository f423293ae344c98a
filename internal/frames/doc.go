// Package frames splits a contiguous frame span into per-worker ranges.
//
// Partition is pure: the same arguments always produce the same ranges, and
// the ranges are contiguous, non-overlapping, and cover exactly the requested
// span. Validate enforces the one-frame-per-worker precondition and must be
// called before Partition.
package frames
