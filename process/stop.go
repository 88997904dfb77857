//go:build unix

package process

import (
	"github.com/kbukum/prockit/errors"
	"github.com/kbukum/prockit/logger"
)

// Stop runs the three-stage escalation in order. The first non-noop action
// whose wait completes with anything other than TIMED_OUT ends the
// sequence; a failing terminate or kill ends it immediately. If no action
// completes a wait, TIMED_OUT is returned and the process stays in
// progress.
func (p *Process) Stop(actions StopActions) (int, error) {
	if err := p.requireStarted(); err != nil {
		return 0, err
	}

	steps := [3]StopAction{actions.First, actions.Second, actions.Third}

	code := 0
	var err error = errors.TimedOut("stop")

	for _, step := range steps {
		switch step.Kind {
		case StopNoop:
			// Skip without touching the result of earlier stages: a
			// trailing noop must not turn a timed-out stop into a success.
			continue
		case StopWait:
			// No signal; just wait below.
		case StopTerminate:
			if serr := p.Terminate(); serr != nil {
				return 0, serr
			}
		case StopKill:
			if serr := p.Kill(); serr != nil {
				return 0, serr
			}
		default:
			return 0, errors.InvalidArgument("unknown stop action")
		}

		observeStopStep(step.Kind)
		p.log.Debug("stop step", logger.Fields(
			logger.FieldOperation, "stop",
			"action", step.Kind,
			"timeout", step.Timeout,
		))

		code, err = p.Wait(step.Timeout)
		if !errors.IsTimedOut(err) {
			return code, err
		}
	}

	return code, err
}
