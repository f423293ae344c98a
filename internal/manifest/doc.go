// Package manifest writes and reads the concat list handed to ffmpeg's concat
// demuxer.
//
// Each line has the form file '<absolute path>' and lines follow partition
// order. Single quotes inside a path are escaped as '\''.
package manifest
