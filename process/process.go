//go:build unix

package process

import (
	"time"

	"github.com/kbukum/prockit/errors"
	"github.com/kbukum/prockit/handle"
	"github.com/kbukum/prockit/logger"
	"github.com/kbukum/prockit/redirect"
)

// Process supervises a single child process. All pipe handles it owns are
// either valid and exclusively owned, or invalid.
type Process struct {
	child    *child
	pipes    pipes
	status   Status
	exitCode int
	stop     StopActions
	deadline time.Time
	nonblock bool
	log      *logger.Logger
}

type pipes struct {
	in   handle.Handle
	out  handle.Handle
	err  handle.Handle
	exit handle.Handle
}

// New creates a Process in the NotStarted state.
func New() *Process {
	return &Process{
		pipes: pipes{
			in:   handle.Invalid,
			out:  handle.Invalid,
			err:  handle.Invalid,
			exit: handle.Invalid,
		},
		status: StatusNotStarted,
		log:    logger.Nop(),
	}
}

// Status returns the current lifecycle state.
func (p *Process) Status() Status { return p.status }

// ExitCode returns the collected exit code. It is only meaningful once
// Status reports Exited.
func (p *Process) ExitCode() int { return p.exitCode }

// Deadline returns the absolute deadline of the process. The zero time
// means no deadline is armed.
func (p *Process) Deadline() time.Time { return p.deadline }

// Pid returns the OS process id of the child, or -1 when no child is
// attached.
func (p *Process) Pid() int {
	if p.child == nil {
		return -1
	}
	return p.child.pid()
}

// Start launches argv[0] with the redirections, environment, and deadline
// configured in opts. It is legal exactly once, in the NotStarted state.
// Every resource acquired on a failing path is released before Start
// returns.
func (p *Process) Start(argv []string, opts Options) error {
	if p == nil {
		return errors.InvalidArgument("process is required")
	}
	if p.status != StatusNotStarted {
		return errors.InvalidArgument("process has already been started")
	}

	opts, err := parseOptions(argv, opts)
	if err != nil {
		return err
	}
	p.log = opts.Logger
	p.nonblock = opts.NonBlocking

	if err := initGlobal(); err != nil {
		return err
	}

	childEnds := pipes{
		in:   handle.Invalid,
		out:  handle.Invalid,
		err:  handle.Invalid,
		exit: handle.Invalid,
	}

	fail := func(err error) error {
		childEnds.destroyAll()
		p.child = releaseChild(p.child)
		p.pipes.destroyAll()
		deinitGlobal()
		return err
	}

	p.pipes.in, childEnds.in, err = redirect.Init(redirect.In, opts.Redirect.In, handle.Invalid)
	if err != nil {
		return fail(err)
	}

	p.pipes.out, childEnds.out, err = redirect.Init(redirect.Out, opts.Redirect.Out, handle.Invalid)
	if err != nil {
		return fail(err)
	}

	// The stderr redirection may consume the stdout child end for merging.
	p.pipes.err, childEnds.err, err = redirect.Init(redirect.Err, opts.Redirect.Err, childEnds.out)
	if err != nil {
		return fail(err)
	}

	p.pipes.exit, childEnds.exit, err = handle.Pair()
	if err != nil {
		return fail(err)
	}
	if err := p.pipes.exit.SetNonblock(true); err != nil {
		return fail(err)
	}

	// launch consumes the child ends: the child holds its own copies of
	// the stdio and exit descriptors afterwards.
	p.child, err = launch(argv, opts, &childEnds)
	if err != nil {
		return fail(err)
	}

	if err := p.setupInput(opts.Input); err != nil {
		_ = p.child.kill()
		_, _ = p.child.reap()
		p.child = releaseChild(p.child)
		p.pipes.destroyAll()
		deinitGlobal()
		return err
	}

	p.stop = opts.Stop
	p.deadline = deadlineFrom(opts)
	p.status = StatusInProgress

	p.log.Debug("process started", logger.Fields(
		logger.FieldPID, p.child.pid(),
		logger.FieldOperation, "start",
		"argv0", argv[0],
	))
	observeStart()

	return nil
}

// setupInput delivers the configured input blob to stdin through the
// readiness wait, then closes stdin so the child observes EOF. Writing
// after launch keeps blobs larger than the kernel pipe buffer from
// deadlocking: the child drains while we refill.
func (p *Process) setupInput(input []byte) error {
	if len(input) == 0 {
		return nil
	}
	if !p.pipes.in.Valid() {
		return errors.InvalidArgument("input requires a piped stdin")
	}

	written := 0
	for written < len(input) {
		sets := []handle.Set{{
			In:   p.pipes.in,
			Out:  handle.Invalid,
			Err:  handle.Invalid,
			Exit: handle.Invalid,
		}}
		if err := handle.Wait(sets, Infinite); err != nil {
			return err
		}

		n, err := p.pipes.in.Write(input[written:])
		if err == handle.ErrWouldBlock {
			continue
		}
		if err != nil {
			return err
		}
		written += n
	}

	p.pipes.in = p.pipes.in.Destroy()
	return nil
}

// Read reads from the child's stdout or stderr pipe, waiting for readiness
// no longer than the process deadline allows.
func (p *Process) Read(stream redirect.Stream, buf []byte) (int, error) {
	if p == nil {
		return 0, errors.InvalidArgument("process is required")
	}
	if p.status == StatusInChild {
		return 0, errors.InvalidArgument("operation illegal in the child branch")
	}
	if stream != redirect.Out && stream != redirect.Err {
		return 0, errors.InvalidArgument("read requires the stdout or stderr stream")
	}
	if buf == nil {
		return 0, errors.InvalidArgument("buffer is required")
	}

	pipe := &p.pipes.out
	event := handle.EventOut
	if stream == redirect.Err {
		pipe = &p.pipes.err
		event = handle.EventErr
	}

	for {
		if !pipe.Valid() {
			return 0, errors.BrokenPipe(stream.String())
		}

		if err := p.await(*pipe, event); err != nil {
			return 0, err
		}

		n, err := pipe.Read(buf)
		if err == handle.ErrWouldBlock {
			if p.nonblock {
				return 0, errors.TimedOut("read")
			}
			continue
		}
		if errors.IsBrokenPipe(err) {
			*pipe = pipe.Destroy()
			return 0, errors.BrokenPipe(stream.String())
		}
		return n, err
	}
}

// Write writes to the child's stdin pipe. A nil buffer of zero length is a
// no-op. Short writes are reported through the returned count.
func (p *Process) Write(buf []byte) (int, error) {
	if p == nil {
		return 0, errors.InvalidArgument("process is required")
	}
	if p.status == StatusInChild {
		return 0, errors.InvalidArgument("operation illegal in the child branch")
	}
	if buf == nil {
		return 0, nil
	}

	for {
		if !p.pipes.in.Valid() {
			return 0, errors.BrokenPipe(redirect.In.String())
		}

		if err := p.await(p.pipes.in, handle.EventIn); err != nil {
			return 0, err
		}

		n, err := p.pipes.in.Write(buf)
		if err == handle.ErrWouldBlock {
			if p.nonblock {
				return 0, errors.TimedOut("write")
			}
			continue
		}
		if errors.IsBrokenPipe(err) {
			p.pipes.in = p.pipes.in.Destroy()
			return 0, errors.BrokenPipe(redirect.In.String())
		}
		return n, err
	}
}

// await blocks until the given pipe reports the event, bounded by the
// process deadline and the NonBlocking option.
func (p *Process) await(pipe handle.Handle, event handle.Events) error {
	timeout := expiry(Infinite, p.deadline)
	if p.nonblock {
		timeout = 0
	}

	set := handle.Set{In: handle.Invalid, Out: handle.Invalid, Err: handle.Invalid, Exit: handle.Invalid}
	switch event {
	case handle.EventIn:
		set.In = pipe
	case handle.EventOut:
		set.Out = pipe
	case handle.EventErr:
		set.Err = pipe
	}

	sets := []handle.Set{set}
	return handle.Wait(sets, timeout)
}

// Close destroys the parent end of the selected stream's pipe. Closing an
// already closed stream is a no-op.
func (p *Process) Close(stream redirect.Stream) error {
	if p == nil {
		return errors.InvalidArgument("process is required")
	}
	if p.status == StatusInChild {
		return errors.InvalidArgument("operation illegal in the child branch")
	}

	switch stream {
	case redirect.In:
		p.pipes.in = p.pipes.in.Destroy()
	case redirect.Out:
		p.pipes.out = p.pipes.out.Destroy()
	case redirect.Err:
		p.pipes.err = p.pipes.err.Destroy()
	default:
		return errors.InvalidArgument("unknown stream")
	}

	return nil
}

// Wait blocks until the child exits or the timeout elapses, then returns
// the exit code. The sentinel UntilDeadline substitutes the time remaining
// until the process deadline. A timeout leaves the process InProgress and
// the exit code uncollected.
func (p *Process) Wait(timeout time.Duration) (int, error) {
	if err := p.requireStarted(); err != nil {
		return 0, err
	}

	if p.status == StatusExited {
		return p.exitCode, nil
	}

	if timeout == UntilDeadline {
		timeout = expiry(Infinite, p.deadline)
	}

	sets := []handle.Set{{
		In:   handle.Invalid,
		Out:  handle.Invalid,
		Err:  handle.Invalid,
		Exit: p.pipes.exit,
	}}
	if err := handle.Wait(sets, timeout); err != nil {
		return 0, err
	}

	code, err := p.child.reap()
	if err != nil {
		return 0, err
	}

	p.pipes.exit = p.pipes.exit.Destroy()
	p.child = releaseChild(p.child)
	p.exitCode = code
	p.status = StatusExited

	p.log.Debug("process exited", logger.Fields(
		logger.FieldOperation, "wait",
		logger.FieldStatus, code,
	))
	observeExit(code)

	return code, nil
}

// Terminate requests cooperative shutdown of the child. It does not collect
// the exit code; callers still Wait. On an exited process it succeeds with
// no effect.
func (p *Process) Terminate() error {
	if err := p.requireStarted(); err != nil {
		return err
	}
	if p.status == StatusExited {
		return nil
	}

	p.log.Debug("terminating process", logger.Fields(logger.FieldPID, p.child.pid()))
	observeSignal("terminate")
	return p.child.terminate()
}

// Kill forcibly kills the child. It does not collect the exit code. On an
// exited process it succeeds with no effect.
func (p *Process) Kill() error {
	if err := p.requireStarted(); err != nil {
		return err
	}
	if p.status == StatusExited {
		return nil
	}

	p.log.Debug("killing process", logger.Fields(logger.FieldPID, p.child.pid()))
	observeSignal("kill")
	return p.child.kill()
}

// Destroy runs the configured stop escalation if the process is still in
// progress, releases every handle the process owns, and returns nil so the
// caller can self-assign. It is legal in any state.
func (p *Process) Destroy() *Process {
	if p == nil {
		return nil
	}

	if p.status == StatusInProgress {
		// Best effort; a child that refuses to die is abandoned.
		_, _ = p.Stop(p.stop)
	}

	started := p.status != StatusNotStarted

	p.child = releaseChild(p.child)
	p.pipes.destroyAll()

	if started {
		deinitGlobal()
	}

	p.status = StatusNotStarted
	p.deadline = time.Time{}
	p.stop = StopActions{}

	return nil
}

func (p *Process) requireStarted() error {
	if p == nil {
		return errors.InvalidArgument("process is required")
	}
	switch p.status {
	case StatusInChild:
		return errors.InvalidArgument("operation illegal in the child branch")
	case StatusNotStarted:
		return errors.InvalidArgument("process has not been started")
	}
	return nil
}

func (ps *pipes) destroyAll() {
	ps.in = ps.in.Destroy()
	ps.out = ps.out.Destroy()
	ps.err = ps.err.Destroy()
	ps.exit = ps.exit.Destroy()
}
