package process

import (
	"strings"
	"time"

	"github.com/kbukum/prockit/errors"
	"github.com/kbukum/prockit/logger"
	"github.com/kbukum/prockit/redirect"
	"github.com/kbukum/prockit/validation"
)

// Timeout sentinels and exit code conventions.
const (
	// Infinite disables the timeout of a blocking call.
	Infinite time.Duration = -1
	// UntilDeadline makes Wait use the remaining time until the process
	// deadline as its timeout.
	UntilDeadline time.Duration = -2

	// SignalOffset is added to the signal number to encode a signalled
	// exit as an exit code.
	SignalOffset = 128
	// ExitSIGTERM is the exit code of a child terminated by SIGTERM.
	ExitSIGTERM = SignalOffset + 15
	// ExitSIGKILL is the exit code of a child killed by SIGKILL.
	ExitSIGKILL = SignalOffset + 9
)

// StopKind selects one step of the stop escalation.
type StopKind int

const (
	// StopNoop skips this step.
	StopNoop StopKind = iota
	// StopWait waits for the child without signalling it.
	StopWait
	// StopTerminate requests cooperative shutdown, then waits.
	StopTerminate
	// StopKill forcibly kills the child, then waits.
	StopKill
)

// StopAction pairs one escalation step with its wait timeout.
type StopAction struct {
	Kind    StopKind      `mapstructure:"kind" validate:"min=0,max=3"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StopActions is the ordered three-stage stop escalation.
type StopActions struct {
	First  StopAction `mapstructure:"first"`
	Second StopAction `mapstructure:"second"`
	Third  StopAction `mapstructure:"third"`
}

// IsZero reports whether no stop action is configured.
func (s StopActions) IsZero() bool {
	return s.First == (StopAction{}) && s.Second == (StopAction{}) && s.Third == (StopAction{})
}

// RedirectOptions selects the redirection of each standard stream.
type RedirectOptions struct {
	In  redirect.Redirect
	Out redirect.Redirect
	Err redirect.Redirect
}

// Options configures Start.
type Options struct {
	// Environment replaces the child's environment. Nil inherits the
	// parent's environment.
	Environment []string
	// WorkingDirectory is the child's working directory. Empty inherits.
	WorkingDirectory string
	// Redirect selects per-stream redirections. The zero value pipes all
	// three streams.
	Redirect RedirectOptions
	// NonBlocking makes Read and Write return immediately with TIMED_OUT
	// instead of waiting for pipe readiness.
	NonBlocking bool
	// Input is written to stdin before Start returns; stdin is closed
	// after the final byte so the child observes EOF.
	Input []byte
	// Stop is the escalation Destroy runs when the process is still in
	// progress. Defaults to Terminate with a 5s wait, then Kill with a 5s
	// wait.
	Stop StopActions
	// Timeout arms a process deadline this long after Start.
	Timeout time.Duration `validate:"min=-1"`
	// Deadline arms an absolute process deadline. Takes precedence over
	// Timeout when set.
	Deadline time.Time
	// Logger receives lifecycle events. Nil disables logging.
	Logger *logger.Logger
}

// parseOptions validates argv and fills defaults, mirroring the option
// normalization the launcher relies on.
func parseOptions(argv []string, opts Options) (Options, error) {
	if len(argv) == 0 {
		return opts, errors.InvalidArgument("argv must contain at least the program name")
	}
	for i, arg := range argv {
		if strings.TrimSpace(arg) == "" && i == 0 {
			return opts, errors.InvalidArgument("argv[0] must not be blank")
		}
	}

	if err := validation.Validate(opts); err != nil {
		return opts, err
	}

	// Destroy must never hang on an unresponsive child: the default stop
	// escalation is a cooperative terminate with a grace period, then kill.
	if opts.Stop.IsZero() {
		opts.Stop = StopActions{
			First:  StopAction{Kind: StopTerminate, Timeout: 5 * time.Second},
			Second: StopAction{Kind: StopKill, Timeout: 5 * time.Second},
		}
	}

	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	return opts, nil
}

// deadlineFrom converts the relative Timeout option into an absolute
// deadline, unless an absolute Deadline is already set. The zero time means
// no deadline.
func deadlineFrom(opts Options) time.Time {
	if !opts.Deadline.IsZero() {
		return opts.Deadline
	}
	if opts.Timeout > 0 {
		return time.Now().Add(opts.Timeout)
	}
	return time.Time{}
}

// expiry computes the effective wait bound from a per-call timeout and an
// absolute deadline. Infinite is neutral; an expired deadline yields zero.
func expiry(timeout time.Duration, deadline time.Time) time.Duration {
	if deadline.IsZero() {
		return timeout
	}

	remaining := time.Until(deadline)
	if remaining < 0 {
		remaining = 0
	}

	if timeout == Infinite || timeout < 0 {
		return remaining
	}
	if timeout < remaining {
		return timeout
	}
	return remaining
}
