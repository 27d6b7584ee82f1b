package cothread

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/cothread-go/cothread/internal/osthread"
)

// ReturnHandler is called when a cothread's entry closure returns. The
// default handler logs a diagnostic and terminates the process; a
// replacement may instead switch to another cothread. If a replacement
// returns without switching away, the trampoline terminates the process
// regardless.
type ReturnHandler func(*Cothread)

var returnHandler atomic.Pointer[ReturnHandler]

func init() {
	h := ReturnHandler(defaultReturnHandler)
	returnHandler.Store(&h)
}

// SetReturnHandler replaces the process-wide return trap. Callers should do
// this once at startup before spawning any cothreads; the setter itself is
// synchronized, but ordering against in-flight entry returns is the
// caller's responsibility.
func SetReturnHandler(h ReturnHandler) {
	if h == nil {
		panic("cothread: SetReturnHandler called with a nil handler")
	}
	returnHandler.Store(&h)
}

// ResetReturnHandler restores the default return trap.
func ResetReturnHandler() {
	h := ReturnHandler(defaultReturnHandler)
	returnHandler.Store(&h)
}

func loadReturnHandler() ReturnHandler {
	return *returnHandler.Load()
}

func defaultReturnHandler(c *Cothread) {
	if label := c.Label(); label != "" {
		fmt.Fprintf(os.Stderr, "cothread: entry function returned on %p (%q) on os thread %d; aborting\n", c, label, osthread.Current())
	} else {
		fmt.Fprintf(os.Stderr, "cothread: entry function returned on %p on os thread %d; aborting\n", c, osthread.Current())
	}
	terminateProcess(c, "entry function returned")
}

// terminateProcess is the trampoline's abort path. It is a distinct
// function, rather than an inline os.Exit, so tests can observe that it
// was reached without actually killing the test binary.
var terminateProcess = func(c *Cothread, reason string) {
	fmt.Fprintf(os.Stderr, "cothread: terminating process: %s\n", reason)
	os.Exit(2)
}
