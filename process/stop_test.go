//go:build unix

package process_test

import (
	"testing"
	"time"

	"github.com/kbukum/prockit/errors"
	"github.com/kbukum/prockit/process"
)

func TestStopTerminates(t *testing.T) {
	p := startOrFail(t, []string{"sleep", "60"}, process.Options{})

	code, err := p.Stop(process.StopActions{
		First: process.StopAction{Kind: process.StopTerminate, Timeout: 2 * time.Second},
	})
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if code != process.ExitSIGTERM {
		t.Fatalf("expected %d, got %d", process.ExitSIGTERM, code)
	}
	if p.Status() != process.StatusExited {
		t.Fatalf("expected Exited, got %v", p.Status())
	}
}

func TestStopEscalatesToKill(t *testing.T) {
	// The child ignores SIGTERM, so the terminate stage times out and the
	// kill stage reaps it.
	p := startOrFail(t, []string{"sh", "-c", `trap "" TERM; while :; do :; done`}, process.Options{})

	code, err := p.Stop(process.StopActions{
		First:  process.StopAction{Kind: process.StopTerminate, Timeout: 50 * time.Millisecond},
		Second: process.StopAction{Kind: process.StopKill, Timeout: 2 * time.Second},
		Third:  process.StopAction{Kind: process.StopNoop},
	})
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if code != process.ExitSIGKILL {
		t.Fatalf("expected %d, got %d", process.ExitSIGKILL, code)
	}
}

func TestStopAllStagesTimeOut(t *testing.T) {
	p := startOrFail(t, []string{"sh", "-c", `trap "" TERM; while :; do :; done`}, process.Options{})

	_, err := p.Stop(process.StopActions{
		First:  process.StopAction{Kind: process.StopWait, Timeout: 20 * time.Millisecond},
		Second: process.StopAction{Kind: process.StopTerminate, Timeout: 20 * time.Millisecond},
		Third:  process.StopAction{Kind: process.StopWait, Timeout: 20 * time.Millisecond},
	})
	if !errors.IsTimedOut(err) {
		t.Fatalf("expected TIMED_OUT, got %v", err)
	}
	if p.Status() != process.StatusInProgress {
		t.Fatalf("timed out stop must leave the process running, got %v", p.Status())
	}

	// Clean up for real.
	if err := p.Kill(); err != nil {
		t.Fatalf("kill: %v", err)
	}
	if _, err := p.Wait(time.Second); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestStopTrailingNoopKeepsTimeout(t *testing.T) {
	p := startOrFail(t, []string{"sh", "-c", `trap "" TERM; while :; do :; done`}, process.Options{})

	// The third stage is the zero value, a noop. It must not overwrite the
	// timeouts of the first two stages with a success.
	_, err := p.Stop(process.StopActions{
		First:  process.StopAction{Kind: process.StopWait, Timeout: 20 * time.Millisecond},
		Second: process.StopAction{Kind: process.StopTerminate, Timeout: 20 * time.Millisecond},
	})
	if !errors.IsTimedOut(err) {
		t.Fatalf("expected TIMED_OUT, got %v", err)
	}
	if p.Status() != process.StatusInProgress {
		t.Fatalf("timed out stop must leave the process running, got %v", p.Status())
	}

	if err := p.Kill(); err != nil {
		t.Fatalf("kill: %v", err)
	}
	if _, err := p.Wait(time.Second); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestStopNoopOnly(t *testing.T) {
	p := startOrFail(t, []string{"sleep", "60"}, process.Options{
		Stop: process.StopActions{
			First: process.StopAction{Kind: process.StopKill, Timeout: time.Second},
		},
	})

	_, err := p.Stop(process.StopActions{
		First:  process.StopAction{Kind: process.StopNoop},
		Second: process.StopAction{Kind: process.StopNoop},
		Third:  process.StopAction{Kind: process.StopNoop},
	})
	if !errors.IsTimedOut(err) {
		t.Fatalf("expected TIMED_OUT from all-noop stop, got %v", err)
	}
	if p.Status() != process.StatusInProgress {
		t.Fatalf("noop stop must not touch the child, got %v", p.Status())
	}
}

func TestStopWaitOnly(t *testing.T) {
	p := startOrFail(t, []string{"sh", "-c", "exit 9"}, process.Options{})

	code, err := p.Stop(process.StopActions{
		First: process.StopAction{Kind: process.StopWait, Timeout: 2 * time.Second},
	})
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if code != 9 {
		t.Fatalf("expected exit 9, got %d", code)
	}
}

func TestStopBeforeStart(t *testing.T) {
	p := process.New()
	defer p.Destroy()

	_, err := p.Stop(process.StopActions{
		First: process.StopAction{Kind: process.StopWait, Timeout: time.Second},
	})
	if !errors.IsInvalidArgument(err) {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
}
