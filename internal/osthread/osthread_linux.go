//go:build linux

package osthread

import "golang.org/x/sys/unix"

// Current returns the kernel thread id of the OS thread the calling
// goroutine is currently running on.
func Current() ID {
	return ID(unix.Gettid())
}
