//go:build unix

package channel

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/hrisio/hris/errors"
)

// IsReadPossible waits up to timeout for the Channel to become readable
// (DESIGN NOTES §9: "From Windows-specific polling to unified readiness" --
// a single waitReady(interest, timeout) rather than a select/
// WaitForSingleObjectEx split). Backends without an underlying descriptor
// (Mem, Null, Calc) are always considered ready.
func (c *Channel) IsReadPossible(timeout time.Duration) (bool, error) {
	return c.waitReady(unix.POLLIN, timeout)
}

// IsWritePossible waits up to timeout for the Channel to become writable.
func (c *Channel) IsWritePossible(timeout time.Duration) (bool, error) {
	return c.waitReady(unix.POLLOUT, timeout)
}

func (c *Channel) waitReady(interest int16, timeout time.Duration) (bool, error) {
	backend, err := c.backend()
	if err != nil {
		return false, c.fail(err)
	}
	fd, ok := backend.Fd()
	if !ok {
		// In-memory backends (Mem, Null, Calc) are always ready: there is
		// no underlying descriptor to block on.
		return true, nil
	}
	pfd := []unix.PollFd{{Fd: int32(fd), Events: interest}}
	n, err := unix.Poll(pfd, int(timeout.Milliseconds()))
	if err != nil {
		if err == unix.EINTR {
			return c.waitReady(interest, timeout)
		}
		return false, c.fail(errors.E(errors.KindOf(err), "poll failed", err))
	}
	return n > 0 && pfd[0].Revents&interest != 0, nil
}
