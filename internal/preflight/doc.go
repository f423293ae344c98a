// Package preflight provides readiness checks for the binaries and
// directories a render session depends on.
//
// The render orchestrator runs RunAll and CheckSystemDeps before touching the
// workspace so a missing binary or unwritable directory fails the session
// with a configuration error instead of a doomed fleet. The doctor command
// uses the same checks to print a readiness table.
package preflight
