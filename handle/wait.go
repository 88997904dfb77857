//go:build unix

package handle

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/kbukum/prockit/errors"
)

// Events is a bitmask of readiness observed (or requested) on one Set.
type Events uint8

const (
	// EventIn signals the stdin pipe accepts writes.
	EventIn Events = 1 << iota
	// EventOut signals the stdout pipe has data to read.
	EventOut
	// EventErr signals the stderr pipe has data to read.
	EventErr
	// EventExit signals the exit pipe became readable: the child exited.
	EventExit
	// EventDeadline is synthetic readiness reported when a deadline expires.
	// The kernel wait never produces it.
	EventDeadline
)

// Set groups the pipes of one process to be watched in a single Wait call.
// Invalid handles are skipped. Events is filled by Wait.
type Set struct {
	In     Handle
	Out    Handle
	Err    Handle
	Exit   Handle
	Events Events
}

// HasValid reports whether any stdio handle in the set is still open.
// The exit handle alone does not count: it tracks process lifetime, not I/O.
func (s *Set) HasValid() bool {
	return s.In.Valid() || s.Out.Valid() || s.Err.Valid()
}

// Wait blocks until at least one watched handle becomes ready or the timeout
// elapses. A negative timeout waits forever. On readiness the Events field of
// each set is populated; on expiry Wait returns TIMED_OUT and no events.
func Wait(sets []Set, timeout time.Duration) error {
	type slot struct {
		set   int
		event Events
	}

	fds := make([]unix.PollFd, 0, len(sets)*4)
	slots := make([]slot, 0, len(sets)*4)

	for i := range sets {
		sets[i].Events = 0

		add := func(h Handle, pollEvents int16, event Events) {
			if !h.Valid() {
				return
			}
			fds = append(fds, unix.PollFd{Fd: int32(h), Events: pollEvents})
			slots = append(slots, slot{set: i, event: event})
		}

		add(sets[i].In, unix.POLLOUT, EventIn)
		add(sets[i].Out, unix.POLLIN, EventOut)
		add(sets[i].Err, unix.POLLIN, EventErr)
		add(sets[i].Exit, unix.POLLIN, EventExit)
	}

	n, err := poll(fds, timeout)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.TimedOut("wait")
	}

	for j := range fds {
		revents := fds[j].Revents
		if revents == 0 {
			continue
		}
		// Error and hangup conditions count as readiness so the caller's
		// next read or write surfaces the definitive error.
		if revents&(fds[j].Events|unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			sets[slots[j].set].Events |= slots[j].event
		}
	}

	return nil
}

// poll invokes the platform wait, retrying on EINTR with the remaining time.
func poll(fds []unix.PollFd, timeout time.Duration) (int, error) {
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		ms := -1
		if timeout >= 0 {
			remaining := time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
			ms = int(remaining.Milliseconds())
			if remaining > 0 && ms == 0 {
				ms = 1
			}
		}

		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, errors.System("poll", asErrno(err))
		}
		return n, nil
	}
}
