// Package fleet launches render workers as independent OS processes and waits
// for all of them.
//
// Every job is started up front in its own process group, with its stdout and
// stderr captured to a per-job log. Runner.Run blocks until each process has
// exited and reports exit codes in submission order, never completion order.
// Success means every worker exited zero; anything else fails the fleet and
// the returned *Error lists every failing job.
//
// The default WaitAll policy lets siblings finish after a failure. FailFast
// terminates the remaining process groups as soon as one worker fails. An
// optional per-job timeout kills a worker that runs too long.
package fleet
