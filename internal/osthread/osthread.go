// Package osthread reports an identity for the OS thread the calling
// goroutine is presently bound to, for diagnostics and for the concurrency
// tests that verify cothread families stay isolated per OS thread. It is
// meaningful only while the calling goroutine holds runtime.LockOSThread,
// exactly the contract cothread families already require (a cothread's
// switch_to precondition is that self was created on the calling OS
// thread).
package osthread

// ID identifies an OS thread. Two calls from goroutines bound to the same
// OS thread return equal IDs.
type ID int
