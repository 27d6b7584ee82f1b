package cothread

import (
	"context"
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sync/semaphore"

	channelbackend "github.com/cothread-go/cothread/internal/backend/channel"
	"github.com/cothread-go/cothread/internal/gls"
	"github.com/cothread-go/cothread/internal/stackmem"
)

// state is a cothread's position in its lifecycle: fresh, suspended,
// running. There is no separate "destroyed" state, since destruction is
// the caller's business and undefined if done while running, so this
// package does not track it.
type state int32

const (
	stateFresh state = iota
	stateSuspended
	stateRunning
)

const (
	wordSize = unsafe.Sizeof(uintptr(0))

	// allocAlign is the alignment this backend requests when it owns the
	// allocation. The channel backend never writes a register frame into
	// the span, so nothing requires 64-byte alignment for correctness; it
	// is kept anyway so StackBase/StackSize report the same shape a
	// register-level backend's spans would.
	allocAlign = 64

	// minBorrowedAlign is the minimum alignment this backend actually
	// relies on for a borrowed span: none, beyond what Go's own allocator
	// already guarantees. It is enforced anyway so a borrowed span meets a
	// conservative floor even though this backend does not depend on it.
	minBorrowedAlign = wordSize

	defaultStackBytes64 = 512 * 1024
	defaultStackBytes32 = 256 * 1024
)

func defaultStackBytes() uintptr {
	if wordSize == 8 {
		return defaultStackBytes64
	}
	return defaultStackBytes32
}

// normalizeOwnedStackBytes rounds n down to allocAlign and rejects a result
// of zero.
func normalizeOwnedStackBytes(n uintptr) (uintptr, error) {
	if n == 0 {
		n = defaultStackBytes()
	}
	n -= n % allocAlign
	if n == 0 {
		return 0, ErrInvalidStackSize
	}
	return n, nil
}

// constructSem serializes the construction path. It stands in for a
// process-wide lock held only during per-cothread initialization, the same
// role a jmpbuf/signal backend's prepare lock plays: this backend does not
// touch global signal-handler state, so the lock is not required for
// correctness, but keeping it preserves the documented contract that
// switching, not construction, is the lock-free path.
var constructSem = semaphore.NewWeighted(1)

// Cothread is a cooperative user-space thread: a stack span, a saved
// switch state, an ownership flag and a debug label.
type Cothread struct {
	family *family
	sw     *channelbackend.Switch
	span   stackmem.Span
	owned  bool

	state atomic.Int32
	label atomic.Pointer[string]

	entry func()
}

// family is the set of cothreads reachable from one another by SwitchTo: a
// per-OS-thread grouping rooted at the goroutine that first called Current
// or Construct. current is the backend's realization of the per-OS-thread
// current-pointer.
type family struct {
	current atomic.Pointer[Cothread]
}

// familyStore holds the calling goroutine's family, one entry per goroutine
// that has touched cothread. It is the only thing ever stored in goroutine-
// local storage in this package, hence the concrete *family type parameter
// rather than gls handing back an any.
var familyStore gls.Store[*family]

// Construct creates a cothread with a stack it owns. stackBytes of 0 means
// the backend default (512 KiB on 64-bit, 256 KiB on 32-bit); the
// requested size is rounded down to the backend's allocation alignment and
// must be nonzero after rounding.
func Construct(entry func(), stackBytes uintptr) (*Cothread, error) {
	if entry == nil {
		panic("cothread: Construct called with a nil entry")
	}
	size, err := normalizeOwnedStackBytes(stackBytes)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := constructSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer constructSem.Release(1)

	span, err := stackmem.NewOwned(size, allocAlign)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocFailed, err)
	}
	return newCothread(entry, span, true), nil
}

// ConstructBorrowed creates a cothread backed by caller-owned memory. buf
// must remain valid and untouched by anything but this cothread until it is
// destroyed; it is not released by Destroy.
func ConstructBorrowed(entry func(), buf []byte) (*Cothread, error) {
	if entry == nil {
		panic("cothread: ConstructBorrowed called with a nil entry")
	}
	if len(buf) == 0 {
		return nil, ErrInvalidStackSize
	}
	base := uintptr(unsafe.Pointer(&buf[0]))
	if base%minBorrowedAlign != 0 || uintptr(len(buf))%minBorrowedAlign != 0 {
		return nil, ErrInvalidStackSize
	}

	ctx := context.Background()
	if err := constructSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer constructSem.Release(1)

	return newCothread(entry, stackmem.NewBorrowed(buf), false), nil
}

func newCothread(entry func(), span stackmem.Span, owned bool) *Cothread {
	f := familyFor(true)

	c := &Cothread{
		family: f,
		sw:     channelbackend.New(),
		span:   span,
		owned:  owned,
		entry:  entry,
	}
	c.state.Store(int32(stateFresh))
	empty := ""
	c.label.Store(&empty)

	c.sw.Start(func() {
		familyStore.Set(f)
		c.run()
	})
	return c
}

// run is the backend's trampoline: it invokes the entry closure and, when
// that closure returns, calls the return trap.
func (c *Cothread) run() {
	entry := c.entry
	c.entry = nil // release the entry record once it has been consumed
	entry()

	trap := loadReturnHandler()
	trap(c)

	// If the trap returns instead of switching away or exiting the
	// process, the trampoline terminates it.
	terminateProcess(c, "return handler returned without switching away")
}

// Destroy releases an owned cothread's stack. It is undefined behavior to
// call Destroy on a running cothread; this package makes no attempt to
// detect that.
//
// Construct and ConstructBorrowed both park a goroutine on c's backend
// switch until the cothread is first switched to (see newCothread). If c
// is destroyed while still fresh, Destroy cancels that parked goroutine so
// it never leaks. If c has run at least once and is destroyed while
// suspended, there is no safe point at which the backend can abandon it
// mid-body, so that goroutine is left permanently parked. This is a leak
// this package accepts as the cost of the goroutine-per-cothread backend,
// rather than a register-level one, which would have no equivalent parked
// goroutine to begin with.
func (c *Cothread) Destroy() {
	if c.loadState() == stateFresh {
		c.sw.Cancel()
	}
	if c.owned {
		c.span.Release()
	}
}

// StackSize reports the size, in bytes, of c's stack span. It is advisory:
// the real allocation may be larger than what was requested.
func (c *Cothread) StackSize() uintptr { return c.span.Len() }

// StackBase reports the lowest address of c's stack span, regardless of
// stack growth direction.
func (c *Cothread) StackBase() uintptr { return c.span.Base() }

// Label returns c's debug label, or the empty string if none was set.
func (c *Cothread) Label() string { return *c.label.Load() }

// SetLabel sets c's debug label. The core never inspects it; it exists for
// the return trap's diagnostic and for the caller's own use.
func (c *Cothread) SetLabel(s string) { c.label.Store(&s) }

func (c *Cothread) loadState() state   { return state(c.state.Load()) }
func (c *Cothread) storeState(s state) { c.state.Store(int32(s)) }
