//go:build !linux

package osthread

import "github.com/cothread-go/cothread/internal/gls"

// Current approximates the OS thread id with the calling goroutine's id.
// Outside Linux this module has no portable, cgo-free syscall for the true
// kernel thread id; combined with runtime.LockOSThread (already required
// of cothread families) a goroutine id is a faithful proxy because exactly
// one goroutine runs on a locked OS thread for the family's lifetime.
func Current() ID {
	return ID(gls.Current())
}
