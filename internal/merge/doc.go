// Package merge drives ffmpeg to join per-range segments into the final
// artifact.
//
// Concat runs the concat demuxer over a manifest with stream copy. MuxAudio
// optionally remuxes an external audio track onto the concatenated video.
// Both run under a bounded timeout and report failures as *Error with the
// captured process output. Nothing is retried.
package merge
