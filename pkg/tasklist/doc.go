// Package tasklist keeps a client-side copy of the task collection split into
// two ordered partitions, incomplete and completed, and reconciles it with a
// Remote.
//
// Every mutation is applied locally first and then sent to the remote in a
// single call. When the call fails the local change is compensated: the
// affected task is put back where it was, found by identity rather than by
// restoring a snapshot, so unrelated changes made while the call was in
// flight survive. The failure is also kept as the current error until the
// next Load or ClearError.
//
// Reordering within one partition is local only; a Load restores server
// order (ascending ID).
package tasklist
