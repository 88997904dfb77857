//go:build unix

package redirect

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/kbukum/prockit/errors"
	"github.com/kbukum/prockit/handle"
)

// Stream identifies one of the three standard streams.
type Stream int

const (
	// In is the child's standard input.
	In Stream = iota
	// Out is the child's standard output.
	Out
	// Err is the child's standard error.
	Err
)

// String returns the conventional name of the stream.
func (s Stream) String() string {
	switch s {
	case In:
		return "stdin"
	case Out:
		return "stdout"
	case Err:
		return "stderr"
	}
	return "unknown"
}

// Kind selects how a stream is redirected. The zero value is Pipe.
type Kind int

const (
	// Pipe connects the stream to a fresh pipe whose parent end the
	// library keeps for reading or writing.
	Pipe Kind = iota
	// Inherit routes the stream to the parent's own corresponding stream.
	Inherit
	// Discard routes the stream to the null device.
	Discard
	// Parent routes the stream to a duplicate of another parent stream,
	// selected by Redirect.Source.
	Parent
	// Handle routes the stream to a caller-supplied handle.
	Handle
)

// Redirect configures the redirection of a single stream.
type Redirect struct {
	Kind Kind
	// Source selects which parent stream to duplicate for Kind Parent.
	Source Stream
	// Target is the caller-supplied handle for Kind Handle.
	Target handle.Handle
}

// Init resolves the redirection for stream into a parent end and an owned
// child end. The parent end is valid only for Pipe redirections and is
// always in nonblocking mode so all its I/O is driven through the readiness
// wait. The stderr call receives the stdout child end so a Parent(Out)
// request can merge stderr onto the stdout pipe.
func Init(stream Stream, r Redirect, stdoutChild handle.Handle) (parent, child handle.Handle, err error) {
	switch r.Kind {
	case Pipe:
		return initPipe(stream)
	case Inherit:
		child, err = dupStd(stream)
		return handle.Invalid, child, err
	case Discard:
		child, err = openNull(stream)
		return handle.Invalid, child, err
	case Parent:
		if stream == Err && r.Source == Out && stdoutChild.Valid() {
			// Merge: route stderr onto the child side of the stdout pipe.
			child, err = stdoutChild.Dup()
			return handle.Invalid, child, err
		}
		child, err = dupStd(r.Source)
		return handle.Invalid, child, err
	case Handle:
		if !r.Target.Valid() {
			return handle.Invalid, handle.Invalid, errors.InvalidArgument("redirect target handle is invalid")
		}
		child, err = r.Target.Dup()
		return handle.Invalid, child, err
	}

	return handle.Invalid, handle.Invalid, errors.InvalidArgument("unknown redirect kind")
}

func initPipe(stream Stream) (parent, child handle.Handle, err error) {
	r, w, err := handle.Pair()
	if err != nil {
		return handle.Invalid, handle.Invalid, err
	}

	if stream == In {
		parent, child = w, r
	} else {
		parent, child = r, w
	}

	if err := parent.SetNonblock(true); err != nil {
		parent.Destroy()
		child.Destroy()
		return handle.Invalid, handle.Invalid, err
	}

	return parent, child, nil
}

func dupStd(stream Stream) (handle.Handle, error) {
	var fd handle.Handle
	switch stream {
	case In:
		fd = handle.Handle(os.Stdin.Fd())
	case Out:
		fd = handle.Handle(os.Stdout.Fd())
	case Err:
		fd = handle.Handle(os.Stderr.Fd())
	default:
		return handle.Invalid, errors.InvalidArgument("unknown stream")
	}
	return fd.Dup()
}

func openNull(stream Stream) (handle.Handle, error) {
	mode := unix.O_WRONLY
	if stream == In {
		mode = unix.O_RDONLY
	}

	fd, err := unix.Open(os.DevNull, mode|unix.O_CLOEXEC, 0)
	if err != nil {
		if errno, ok := err.(syscall.Errno); ok {
			return handle.Invalid, errors.System("open", errno)
		}
		return handle.Invalid, errors.System("open", unix.EIO)
	}
	return handle.Handle(fd), nil
}
