//go:build unix

package process

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/kbukum/prockit/errors"
	"github.com/kbukum/prockit/handle"
)

// child wraps the platform launch primitive. The exit pipe's child end is
// installed past the stdio descriptors so the kernel closes it when the
// child terminates, making the parent end readable exactly at exit.
type child struct {
	cmd *exec.Cmd
}

// launch starts argv with the given child-side handles installed. The
// handles in ends are consumed: launch closes the parent's copies on every
// path and marks them invalid, because the child now owns its duplicates.
func launch(argv []string, opts Options, ends *pipes) (*child, error) {
	stdin := os.NewFile(uintptr(ends.in), "|0")
	stdout := os.NewFile(uintptr(ends.out), "|1")
	stderr := os.NewFile(uintptr(ends.err), "|2")
	exitPipe := os.NewFile(uintptr(ends.exit), "|exit")

	defer func() {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		exitPipe.Close()
		ends.in = handle.Invalid
		ends.out = handle.Invalid
		ends.err = handle.Invalid
		ends.exit = handle.Invalid
	}()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.ExtraFiles = []*os.File{exitPipe}
	cmd.Env = opts.Environment
	cmd.Dir = opts.WorkingDirectory
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.System("exec", unix.ENOENT).WithCause(err)
		}
		return nil, errors.System("exec", unix.EIO).WithCause(err)
	}

	return &child{cmd: cmd}, nil
}

func (c *child) pid() int {
	if c == nil || c.cmd.Process == nil {
		return -1
	}
	return c.cmd.Process.Pid
}

// reap collects the exit status. It must only be called once the exit pipe
// reported readiness, so the underlying wait returns without blocking.
// A child killed by signal N reports 128+N.
func (c *child) reap() (int, error) {
	err := c.cmd.Wait()
	if err == nil {
		return 0, nil
	}

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return 0, errors.System("wait", unix.EIO).WithCause(err)
	}

	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return 0, errors.System("wait", unix.EIO).WithCause(err)
	}

	if status.Signaled() {
		return SignalOffset + int(status.Signal()), nil
	}
	return status.ExitStatus(), nil
}

// terminate delivers SIGTERM to the child's process group.
func (c *child) terminate() error {
	return c.signal(unix.SIGTERM)
}

// kill delivers SIGKILL to the child's process group.
func (c *child) kill() error {
	return c.signal(unix.SIGKILL)
}

func (c *child) signal(sig unix.Signal) error {
	if c == nil || c.cmd.Process == nil {
		return errors.InvalidArgument("no child attached")
	}

	err := unix.Kill(-c.cmd.Process.Pid, sig)
	if err == unix.ESRCH {
		// The group leader may already be a zombie; try it directly.
		err = unix.Kill(c.cmd.Process.Pid, sig)
	}
	if err == unix.ESRCH || err == nil {
		return nil
	}
	if errno, ok := err.(syscall.Errno); ok {
		return errors.System("kill", errno)
	}
	return errors.System("kill", unix.EIO)
}

// releaseChild abandons the child identity, returning the invalid value.
func releaseChild(c *child) *child {
	if c != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Release()
	}
	return nil
}
