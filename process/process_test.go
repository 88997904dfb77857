//go:build unix

package process_test

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/prockit/errors"
	"github.com/kbukum/prockit/process"
	"github.com/kbukum/prockit/redirect"
)

const message = "reproc stands for REdirected PROCess"

// echoBoth reads all of stdin, then writes it to stdout followed by stderr.
var echoBoth = []string{"sh", "-c", `out=$(cat); printf "%s" "$out"; printf "%s" "$out" >&2`}

func startOrFail(t *testing.T, argv []string, opts process.Options) *process.Process {
	t.Helper()
	p := process.New()
	if err := p.Start(argv, opts); err != nil {
		t.Fatalf("start %v: %v", argv, err)
	}
	t.Cleanup(func() { p.Destroy() })
	return p
}

func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("cannot probe /proc/self/fd: %v", err)
	}
	return len(entries)
}

func TestRoundTripStdout(t *testing.T) {
	p := startOrFail(t, []string{"cat"}, process.Options{})

	n, err := p.Write([]byte(message))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != len(message) {
		t.Fatalf("expected %d bytes written, got %d", len(message), n)
	}
	if err := p.Close(redirect.In); err != nil {
		t.Fatalf("close stdin: %v", err)
	}

	out, stderr, err := process.DrainStrings(p)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if out != message {
		t.Fatalf("expected %q on stdout, got %q", message, out)
	}
	if stderr != "" {
		t.Fatalf("expected empty stderr, got %q", stderr)
	}

	code, err := p.Wait(process.Infinite)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
}

func TestRoundTripStderr(t *testing.T) {
	p := startOrFail(t, []string{"sh", "-c", "cat >&2"}, process.Options{})

	if _, err := p.Write([]byte(message)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := p.Close(redirect.In); err != nil {
		t.Fatalf("close stdin: %v", err)
	}

	out, stderr, err := process.DrainStrings(p)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if stderr != message {
		t.Fatalf("expected %q on stderr, got %q", message, stderr)
	}
	if out != "" {
		t.Fatalf("expected empty stdout, got %q", out)
	}

	if code, err := p.Wait(process.Infinite); err != nil || code != 0 {
		t.Fatalf("wait: code %d, err %v", code, err)
	}
}

func TestRoundTripBothStreams(t *testing.T) {
	p := startOrFail(t, echoBoth, process.Options{})

	if _, err := p.Write([]byte(message)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := p.Close(redirect.In); err != nil {
		t.Fatalf("close stdin: %v", err)
	}

	out, stderr, err := process.DrainStrings(p)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if out+stderr != message+message {
		t.Fatalf("expected payload twice, got stdout %q stderr %q", out, stderr)
	}

	if code, err := p.Wait(process.Infinite); err != nil || code != 0 {
		t.Fatalf("wait: code %d, err %v", code, err)
	}
}

func TestMergedStderr(t *testing.T) {
	p := startOrFail(t, echoBoth, process.Options{
		Redirect: process.RedirectOptions{
			Err: redirect.Redirect{Kind: redirect.Parent, Source: redirect.Out},
		},
	})

	if _, err := p.Write([]byte(message)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := p.Close(redirect.In); err != nil {
		t.Fatalf("close stdin: %v", err)
	}

	out, stderr, err := process.DrainStrings(p)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if out != message+message {
		t.Fatalf("expected merged payload twice on stdout, got %q", out)
	}
	if stderr != "" {
		t.Fatalf("expected empty stderr after merge, got %q", stderr)
	}
}

func TestDeadlineRead(t *testing.T) {
	p := startOrFail(t, []string{"cat"}, process.Options{Timeout: 200 * time.Millisecond})

	buf := make([]byte, 1)
	start := time.Now()
	_, err := p.Read(redirect.Out, buf)
	if !errors.IsTimedOut(err) {
		t.Fatalf("expected TIMED_OUT, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("read returned before the deadline: %v", elapsed)
	}

	if err := p.Close(redirect.In); err != nil {
		t.Fatalf("close stdin: %v", err)
	}
	if code, err := p.Wait(process.Infinite); err != nil || code != 0 {
		t.Fatalf("wait: code %d, err %v", code, err)
	}

	// The child is gone and its stdout end closed: the pipe reports end
	// of stream and stays broken.
	if _, err := p.Read(redirect.Out, buf); !errors.IsBrokenPipe(err) {
		t.Fatalf("expected BROKEN_PIPE, got %v", err)
	}
	if _, err := p.Read(redirect.Out, buf); !errors.IsBrokenPipe(err) {
		t.Fatalf("expected BROKEN_PIPE to be sticky, got %v", err)
	}
}

func TestInputOption(t *testing.T) {
	p := startOrFail(t, []string{"cat"}, process.Options{Input: []byte(message)})

	out, _, err := process.DrainStrings(p)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if out != message {
		t.Fatalf("expected %q, got %q", message, out)
	}

	// setup_input already closed stdin.
	if _, err := p.Write([]byte("late")); !errors.IsBrokenPipe(err) {
		t.Fatalf("expected BROKEN_PIPE on stdin after input, got %v", err)
	}
}

func TestLargeInput(t *testing.T) {
	// Larger than any default kernel pipe buffer so the input write loop
	// has to re-arm through the readiness wait.
	input := strings.Repeat("0123456789abcdef", 16*1024) // 256 KiB

	p := startOrFail(t, []string{"cat"}, process.Options{Input: []byte(input)})

	out, _, err := process.DrainStrings(p)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if out != input {
		t.Fatalf("expected %d bytes back, got %d", len(input), len(out))
	}

	if code, err := p.Wait(process.Infinite); err != nil || code != 0 {
		t.Fatalf("wait: code %d, err %v", code, err)
	}
}

func TestWriteNilBuffer(t *testing.T) {
	p := startOrFail(t, []string{"cat"}, process.Options{})

	n, err := p.Write(nil)
	if err != nil {
		t.Fatalf("nil write: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 bytes, got %d", n)
	}
}

func TestCloseThenIO(t *testing.T) {
	p := startOrFail(t, []string{"cat"}, process.Options{})

	if err := p.Close(redirect.Out); err != nil {
		t.Fatalf("close stdout: %v", err)
	}
	if _, err := p.Read(redirect.Out, make([]byte, 1)); !errors.IsBrokenPipe(err) {
		t.Fatalf("expected BROKEN_PIPE after close, got %v", err)
	}

	if err := p.Close(redirect.In); err != nil {
		t.Fatalf("close stdin: %v", err)
	}
	if _, err := p.Write([]byte("x")); !errors.IsBrokenPipe(err) {
		t.Fatalf("expected BROKEN_PIPE after close, got %v", err)
	}

	// Closing an already closed stream is a no-op.
	if err := p.Close(redirect.In); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestWaitStability(t *testing.T) {
	p := startOrFail(t, []string{"sh", "-c", "exit 3"}, process.Options{})

	first, err := p.Wait(process.Infinite)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if first != 3 {
		t.Fatalf("expected exit 3, got %d", first)
	}

	second, err := p.Wait(process.Infinite)
	if err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if second != first {
		t.Fatalf("wait is not stable: %d then %d", first, second)
	}
	if p.Status() != process.StatusExited {
		t.Fatalf("expected Exited, got %v", p.Status())
	}
}

func TestWaitTimeout(t *testing.T) {
	p := startOrFail(t, []string{"sleep", "60"}, process.Options{
		Stop: process.StopActions{
			First: process.StopAction{Kind: process.StopKill, Timeout: time.Second},
		},
	})

	_, err := p.Wait(50 * time.Millisecond)
	if !errors.IsTimedOut(err) {
		t.Fatalf("expected TIMED_OUT, got %v", err)
	}
	if p.Status() != process.StatusInProgress {
		t.Fatalf("timeout must not change status, got %v", p.Status())
	}
}

func TestSignalledExitCode(t *testing.T) {
	p := startOrFail(t, []string{"sleep", "60"}, process.Options{})

	if err := p.Kill(); err != nil {
		t.Fatalf("kill: %v", err)
	}
	code, err := p.Wait(process.Infinite)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if code != process.ExitSIGKILL {
		t.Fatalf("expected %d, got %d", process.ExitSIGKILL, code)
	}
}

func TestSignalsOnExitedProcess(t *testing.T) {
	p := startOrFail(t, []string{"sh", "-c", "exit 0"}, process.Options{})

	if _, err := p.Wait(process.Infinite); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if err := p.Terminate(); err != nil {
		t.Fatalf("terminate on exited process: %v", err)
	}
	if err := p.Kill(); err != nil {
		t.Fatalf("kill on exited process: %v", err)
	}
}

func TestPreconditions(t *testing.T) {
	p := process.New()
	defer p.Destroy()

	if _, err := p.Wait(process.Infinite); !errors.IsInvalidArgument(err) {
		t.Fatalf("wait before start: %v", err)
	}
	if err := p.Terminate(); !errors.IsInvalidArgument(err) {
		t.Fatalf("terminate before start: %v", err)
	}
	if err := p.Start(nil, process.Options{}); !errors.IsInvalidArgument(err) {
		t.Fatalf("start without argv: %v", err)
	}
	if _, err := p.Read(redirect.In, make([]byte, 1)); !errors.IsInvalidArgument(err) {
		t.Fatalf("read on stdin stream: %v", err)
	}

	if err := p.Start([]string{"cat"}, process.Options{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := p.Start([]string{"cat"}, process.Options{}); !errors.IsInvalidArgument(err) {
		t.Fatalf("second start: %v", err)
	}
}

func TestEnvironmentAndWorkingDirectory(t *testing.T) {
	dir := t.TempDir()

	p := startOrFail(t, []string{"sh", "-c", "printf '%s:%s' \"$PWD\" \"$GREETING\""}, process.Options{
		Environment:      []string{"GREETING=hello"},
		WorkingDirectory: dir,
	})

	out, _, err := process.DrainStrings(p)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if out != dir+":hello" {
		t.Fatalf("expected %q, got %q", dir+":hello", out)
	}
}

func TestNonBlockingRead(t *testing.T) {
	p := startOrFail(t, []string{"sleep", "60"}, process.Options{
		NonBlocking: true,
		Stop: process.StopActions{
			First: process.StopAction{Kind: process.StopKill, Timeout: time.Second},
		},
	})

	start := time.Now()
	_, err := p.Read(redirect.Out, make([]byte, 1))
	if !errors.IsTimedOut(err) {
		t.Fatalf("expected TIMED_OUT, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("nonblocking read blocked for %v", elapsed)
	}
}

func TestExecNotFound(t *testing.T) {
	p := process.New()
	defer p.Destroy()

	err := p.Start([]string{"definitely-not-a-real-binary-1b8f"}, process.Options{})
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if p.Status() != process.StatusNotStarted {
		t.Fatalf("failed start must leave status NotStarted, got %v", p.Status())
	}
}

func TestDestroyReleasesDescriptors(t *testing.T) {
	before := openFDs(t)

	p := process.New()
	if err := p.Start([]string{"cat"}, process.Options{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := p.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := p.Close(redirect.In); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, _, err := process.DrainStrings(p); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if _, err := p.Wait(process.Infinite); err != nil {
		t.Fatalf("wait: %v", err)
	}
	p = p.Destroy()
	if p != nil {
		t.Fatal("destroy must return the invalid sentinel")
	}

	after := openFDs(t)
	if after != before {
		t.Fatalf("descriptor leak: %d before, %d after", before, after)
	}
}

func TestDestroyRunsStopActions(t *testing.T) {
	before := openFDs(t)

	p := process.New()
	err := p.Start([]string{"sleep", "60"}, process.Options{
		Stop: process.StopActions{
			First:  process.StopAction{Kind: process.StopTerminate, Timeout: 500 * time.Millisecond},
			Second: process.StopAction{Kind: process.StopKill, Timeout: 500 * time.Millisecond},
		},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	p.Destroy()

	if after := openFDs(t); after != before {
		t.Fatalf("descriptor leak: %d before, %d after", before, after)
	}
}
