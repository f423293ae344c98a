// Package history journals render sessions in a SQLite database.
//
// The orchestrator records a row when a session starts and updates it when
// the session reaches Finalized or Failed, including the failing stage and
// every worker exit code. The history command lists recent rows. Journal
// writes are best-effort: callers log failures and carry on rendering.
package history
