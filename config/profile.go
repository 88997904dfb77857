package config

import (
	"time"

	"github.com/kbukum/prockit/errors"
	"github.com/kbukum/prockit/handle"
	"github.com/kbukum/prockit/process"
	"github.com/kbukum/prockit/redirect"
	"github.com/kbukum/prockit/validation"
)

// Profile describes how to run and stop one child process.
type Profile struct {
	// Command is the argv of the child, program name first.
	Command []string `mapstructure:"command" validate:"required,min=1"`
	// Environment replaces the child's environment when non-empty.
	Environment []string `mapstructure:"environment"`
	// WorkingDirectory is the child's working directory.
	WorkingDirectory string `mapstructure:"working_directory"`
	// Redirect names the redirection of each stream.
	Redirect RedirectProfile `mapstructure:"redirect"`
	// NonBlocking makes reads and writes return instead of waiting.
	NonBlocking bool `mapstructure:"nonblocking"`
	// Input is written to the child's stdin before it runs.
	Input string `mapstructure:"input"`
	// Stop is the ordered escalation used to bring the child down.
	Stop []StopStep `mapstructure:"stop" validate:"max=3,dive"`
	// Timeout arms a process deadline this long after start.
	Timeout time.Duration `mapstructure:"timeout" validate:"min=0"`
}

// RedirectProfile names the redirection of each standard stream.
// Every stream accepts "" or "pipe", "inherit", and "discard". Err also
// accepts "stdout", which merges stderr onto the stdout pipe; validation
// rejects any other value.
type RedirectProfile struct {
	In  string `mapstructure:"in" validate:"omitempty,oneof=pipe inherit discard"`
	Out string `mapstructure:"out" validate:"omitempty,oneof=pipe inherit discard"`
	Err string `mapstructure:"err" validate:"omitempty,oneof=pipe inherit discard stdout"`
}

// StopStep is one stage of the stop escalation.
type StopStep struct {
	Action  string        `mapstructure:"action" validate:"oneof=noop wait terminate kill"`
	Timeout time.Duration `mapstructure:"timeout" validate:"min=-1"`
}

// Options resolves the profile into the argv and options Start expects.
func (p Profile) Options() ([]string, process.Options, error) {
	if err := validation.Validate(p); err != nil {
		return nil, process.Options{}, err
	}

	opts := process.Options{
		Environment:      p.Environment,
		WorkingDirectory: p.WorkingDirectory,
		NonBlocking:      p.NonBlocking,
		Input:            []byte(p.Input),
		Timeout:          p.Timeout,
	}

	var err error
	if opts.Redirect.In, err = parseRedirect(p.Redirect.In); err != nil {
		return nil, process.Options{}, err
	}
	if opts.Redirect.Out, err = parseRedirect(p.Redirect.Out); err != nil {
		return nil, process.Options{}, err
	}
	if opts.Redirect.Err, err = parseRedirect(p.Redirect.Err); err != nil {
		return nil, process.Options{}, err
	}

	if opts.Stop, err = parseStop(p.Stop); err != nil {
		return nil, process.Options{}, err
	}

	return p.Command, opts, nil
}

func parseRedirect(name string) (redirect.Redirect, error) {
	switch name {
	case "", "pipe":
		return redirect.Redirect{Kind: redirect.Pipe}, nil
	case "inherit":
		return redirect.Redirect{Kind: redirect.Inherit}, nil
	case "discard":
		return redirect.Redirect{Kind: redirect.Discard}, nil
	case "stdout":
		return redirect.Redirect{Kind: redirect.Parent, Source: redirect.Out}, nil
	case "stderr":
		return redirect.Redirect{Kind: redirect.Parent, Source: redirect.Err}, nil
	}
	return redirect.Redirect{Target: handle.Invalid},
		errors.InvalidArgument("unknown redirect name: " + name)
}

func parseStop(steps []StopStep) (process.StopActions, error) {
	var actions process.StopActions
	slots := []*process.StopAction{&actions.First, &actions.Second, &actions.Third}

	if len(steps) > len(slots) {
		return actions, errors.InvalidArgument("at most three stop steps are supported")
	}

	for i, step := range steps {
		kind, err := parseStopKind(step.Action)
		if err != nil {
			return actions, err
		}
		timeout := step.Timeout
		if timeout == 0 && kind != process.StopNoop {
			timeout = process.Infinite
		}
		*slots[i] = process.StopAction{Kind: kind, Timeout: timeout}
	}

	return actions, nil
}

func parseStopKind(name string) (process.StopKind, error) {
	switch name {
	case "noop":
		return process.StopNoop, nil
	case "wait":
		return process.StopWait, nil
	case "terminate":
		return process.StopTerminate, nil
	case "kill":
		return process.StopKill, nil
	}
	return process.StopNoop, errors.InvalidArgument("unknown stop action: " + name)
}
