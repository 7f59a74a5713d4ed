// Package command issues control commands with optimistic local updates.
//
// Issue assigns the next per-device sequence number, writes the new value
// into the device registry at once and sends the command in the background.
// When the upstream answers, the result is reconciled against the registry
// by sequence number, so commands on the same device may be in flight
// together and finish in any order.
//
// Failure policy:
//   - transport errors (network, timeout, 5xx) are retried once after a
//     fixed backoff, then rolled back;
//   - 401 is not retried; the token is handed back to the credential
//     provider and the command is rolled back;
//   - other 4xx responses are rolled back at once.
//
// Failures never surface as errors from Issue. They reach the caller
// through the Handle and the OnFailure callback.
package command
