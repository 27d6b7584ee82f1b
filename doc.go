// Package cothread implements a cooperative user-space thread: an object
// that owns a stack (or borrows one) and can yield control to another such
// object via an explicit, synchronous switch performed without involving
// the kernel scheduler.
//
// A Cothread is constructed with an entry closure and, once switched to for
// the first time, runs that closure until it either calls SwitchTo itself
// or returns. Returning invokes the process-wide return trap (see
// SetReturnHandler), which aborts the process by default.
//
// A cothread is bound to the goroutine that constructed it, and that
// goroutine's family of cothreads may only be switched between from that
// goroutine or from one of its family's own cothread bodies. Callers that
// want switches to stay on one real OS thread should call
// runtime.LockOSThread before constructing the first cothread of a family.
package cothread
