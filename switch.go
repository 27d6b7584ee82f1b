package cothread

import (
	channelbackend "github.com/cothread-go/cothread/internal/backend/channel"
	"github.com/cothread-go/cothread/internal/stackmem"
)

// wrapperSpan reserves the wrapper's advisory buffer. Its ownership is
// never surfaced to the caller (the wrapper's owned flag is always false,
// see newWrapperCothread): this is bookkeeping for StackSize/StackBase, not
// memory the wrapper's Destroy would ever release.
func wrapperSpan(n uintptr) (stackmem.Span, error) {
	return stackmem.NewOwned(n, allocAlign)
}

// familyFor returns the family the calling goroutine belongs to, lazily
// creating one (along with its synthetic wrapper cothread) if this is the
// first time the calling goroutine has touched cothread at all. create
// controls whether that lazy creation happens; Current always passes true,
// while a cothread body's first statement always finds a family already
// installed by the backend's Start callback and never needs to create one.
func familyFor(create bool) *family {
	if f, ok := familyStore.Load(); ok {
		return f
	}
	if !create {
		return nil
	}

	f := &family{}
	wrapper := newWrapperCothread(f)
	f.current.Store(wrapper)
	familyStore.Set(f)
	return f
}

// newWrapperCothread builds the synthetic wrapper representing the calling
// goroutine's own native execution context, before any real cothread in
// its family has run. It owns no stack, since the goroutine already has
// one, but still carries a small reserved span so StackSize and StackBase
// report something, in the spirit of a thread-local buffer sized to hold
// the backend's context frame.
func newWrapperCothread(f *family) *Cothread {
	const wrapperSpanBytes = 512

	c := &Cothread{
		family: f,
		sw:     channelbackend.New(),
		owned:  false,
	}
	if span, err := wrapperSpan(wrapperSpanBytes); err == nil {
		c.span = span
	}
	c.state.Store(int32(stateRunning))
	empty := ""
	c.label.Store(&empty)
	return c
}

// Current returns the currently running cothread for the calling
// goroutine's family, lazily creating the synthetic wrapper on first use.
func Current() *Cothread {
	return familyFor(true).current.Load()
}

// SwitchTo transfers control to c. c must be fresh or suspended, must
// belong to the calling goroutine's family, and must not already be the
// currently running cothread; violating any of these is undefined behavior
// by contract, since this package does not check for it.
//
// SwitchTo returns once some other cothread in the family switches back to
// the caller. All caller-local state observed before the call is preserved
// across it: the channel backend achieves this for free, since the
// caller's goroutine stack is untouched by the handoff.
func (c *Cothread) SwitchTo() {
	f := c.family
	from := f.current.Load()

	// The current-pointer is updated before control actually transfers, so
	// the target observes its own identity as current the moment it
	// resumes, without a second round trip.
	from.storeState(stateSuspended)
	c.storeState(stateRunning)
	f.current.Store(c)

	from.sw.To(c.sw)
}
