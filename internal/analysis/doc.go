// Package analysis runs the three analysis requests for a device
// concurrently and merges them into one Result.
//
// Each request runs in its own goroutine with its own timeout. A failed
// request is replaced by a typed default (no anomalies, a zero cost
// summary, no recommendations) and the others are still returned. Run only
// fails as a whole for an unknown device or an invalid window.
//
// When the caller's context ends before all three have resolved, Run
// returns what has resolved so far, defaults the rest and reports
// ErrTimedOut alongside the result.
package analysis
