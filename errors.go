package cothread

import "errors"

// ErrInvalidStackSize is returned when a requested or supplied stack span
// is too small, or is misaligned for the constructed backend.
var ErrInvalidStackSize = errors.New("cothread: invalid stack size")

// ErrAllocFailed is returned when the underlying aligned allocator refused
// to hand out memory for an owned stack.
var ErrAllocFailed = errors.New("cothread: stack allocation failed")

// ErrSetupFailed is reserved for backends whose construction can fail for
// reasons other than allocation or sizing, such as a jmpbuf/signal backend
// failing to install a signal handler or alternate stack. The channel
// backend has no such failure mode and never returns it, but it is part of
// the public error taxonomy so a future backend can use it without an API
// change.
var ErrSetupFailed = errors.New("cothread: backend setup failed")
