// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe against a rendered segment or the merged output and
// decodes streams and container format. Helpers on Result expose stream
// counts, duration, and the video frame count used to verify that a segment
// holds the frames its range asked for.
package ffprobe
