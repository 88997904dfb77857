//go:build unix

package process_test

import (
	"testing"
	"time"

	"github.com/kbukum/prockit/errors"
	"github.com/kbukum/prockit/process"
)

func TestStartRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		opts process.Options
	}{
		{"empty argv", nil, process.Options{}},
		{"blank program", []string{"  "}, process.Options{}},
		{"negative timeout", []string{"true"}, process.Options{Timeout: -5 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := process.New()
			defer p.Destroy()

			err := p.Start(tt.argv, tt.opts)
			if !errors.IsInvalidArgument(err) {
				t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
			}
			if p.Status() != process.StatusNotStarted {
				t.Fatalf("rejected start must not change status, got %v", p.Status())
			}
		})
	}
}

func TestStopActionsIsZero(t *testing.T) {
	var actions process.StopActions
	if !actions.IsZero() {
		t.Fatal("zero value must report IsZero")
	}
	actions.Second = process.StopAction{Kind: process.StopKill, Timeout: time.Second}
	if actions.IsZero() {
		t.Fatal("configured actions must not report IsZero")
	}
}

func TestAbsoluteDeadlineOption(t *testing.T) {
	p := startOrFail(t, []string{"sleep", "60"}, process.Options{
		Deadline: time.Now().Add(50 * time.Millisecond),
		Stop: process.StopActions{
			First: process.StopAction{Kind: process.StopKill, Timeout: time.Second},
		},
	})

	sources := []process.Source{{Process: p, Interests: process.EventOut}}
	if err := process.Poll(sources, process.Infinite); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if sources[0].Events != process.EventDeadline {
		t.Fatalf("expected EventDeadline from absolute deadline, got %b", sources[0].Events)
	}
}

func TestDeadlineAccessor(t *testing.T) {
	p := startOrFail(t, []string{"sleep", "60"}, process.Options{
		Timeout: time.Minute,
		Stop: process.StopActions{
			First: process.StopAction{Kind: process.StopKill, Timeout: time.Second},
		},
	})

	if p.Deadline().IsZero() {
		t.Fatal("timeout option must arm a deadline")
	}
	if until := time.Until(p.Deadline()); until > time.Minute || until < 50*time.Second {
		t.Fatalf("deadline is not about a minute out: %v", until)
	}
}
