// Package worker builds the invocation descriptor for one render worker.
//
// A Job pairs a frame range with the argument tokens that render it and the
// artifact path the worker writes. Commands are token lists handed straight to
// exec, never shell strings, and every job in a session targets a distinct
// artifact path derived from its index and frame bounds.
package worker
