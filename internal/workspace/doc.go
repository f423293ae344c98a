// Package workspace owns the scoped temporary directory of a render session.
//
// Acquire creates a fresh directory under the configured root and returns a
// Workspace whose Release removes it; callers defer Release immediately so the
// directory is gone on every exit path. Each workspace also holds an advisory
// lock on the session's final output so two sessions never target the same
// artifact. CleanStale sweeps workspaces left behind by processes that were
// killed before their deferred cleanup could run.
package workspace
