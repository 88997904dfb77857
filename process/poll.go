//go:build unix

package process

import (
	"time"

	"github.com/kbukum/prockit/errors"
	"github.com/kbukum/prockit/handle"
)

// Readiness events, re-exported for callers of Poll.
const (
	// EventIn signals the process accepts stdin writes.
	EventIn = handle.EventIn
	// EventOut signals stdout has data to read.
	EventOut = handle.EventOut
	// EventErr signals stderr has data to read.
	EventErr = handle.EventErr
	// EventExit signals the process exited.
	EventExit = handle.EventExit
	// EventDeadline signals the process deadline expired. It is reported
	// as an event, not an error, so overdue processes are handled in the
	// same loop as I/O.
	EventDeadline = handle.EventDeadline
)

// Source pairs a process with the readiness its caller is interested in.
// Events is filled by Poll.
type Source struct {
	Process   *Process
	Interests handle.Events
	Events    handle.Events
}

// Poll waits until any source reports readiness, the earliest process
// deadline expires, or the timeout elapses. Deadline expiry is reported as
// the EventDeadline event on the overdue source; timeout expiry is the
// TIMED_OUT error. An already expired deadline is reported without any
// I/O wait.
func Poll(sources []Source, timeout time.Duration) error {
	if len(sources) == 0 {
		return errors.InvalidArgument("at least one event source is required")
	}
	for i := range sources {
		if sources[i].Process == nil {
			return errors.InvalidArgument("event source process is required")
		}
		sources[i].Events = 0
	}

	earliest, remaining := earliestDeadline(sources)

	if earliest >= 0 && remaining == 0 {
		sources[earliest].Events = EventDeadline
		return nil
	}

	horizon := timeout
	deadlineBound := false
	if earliest >= 0 && (timeout == Infinite || remaining <= timeout) {
		horizon = remaining
		deadlineBound = true
	}

	sets := make([]handle.Set, len(sources))
	anyValid := false
	for i := range sources {
		p := sources[i].Process
		interests := sources[i].Interests

		sets[i] = handle.Set{
			In:   handle.Invalid,
			Out:  handle.Invalid,
			Err:  handle.Invalid,
			Exit: handle.Invalid,
		}
		if interests&EventIn != 0 {
			sets[i].In = p.pipes.in
		}
		if interests&EventOut != 0 {
			sets[i].Out = p.pipes.out
		}
		if interests&EventErr != 0 {
			sets[i].Err = p.pipes.err
		}
		if interests&EventExit != 0 {
			sets[i].Exit = p.pipes.exit
		}

		if sets[i].In.Valid() || sets[i].Out.Valid() || sets[i].Err.Valid() || sets[i].Exit.Valid() {
			anyValid = true
		}
	}

	if !anyValid {
		return errors.BrokenPipe("")
	}

	err := handle.Wait(sets, horizon)
	if errors.IsTimedOut(err) {
		if deadlineBound {
			sources[earliest].Events = EventDeadline
			return nil
		}
		observePollTimeout()
		return err
	}
	if err != nil {
		return err
	}

	for i := range sources {
		sources[i].Events = sets[i].Events
	}

	return nil
}

// earliestDeadline returns the index of the source whose process deadline
// expires first and the time remaining until it, clamped to zero. Sources
// without a deadline are skipped; -1 means none has one.
func earliestDeadline(sources []Source) (int, time.Duration) {
	earliest := -1
	var min time.Duration

	for i := range sources {
		deadline := sources[i].Process.deadline
		if deadline.IsZero() {
			continue
		}

		remaining := expiry(Infinite, deadline)
		if earliest < 0 || remaining < min {
			earliest = i
			min = remaining
		}
	}

	return earliest, min
}
