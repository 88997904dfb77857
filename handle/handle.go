//go:build unix

package handle

import (
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/kbukum/prockit/errors"
)

// Handle is an opaque OS-level identifier for a pipe end.
type Handle int

// Invalid is the distinguished sentinel for a handle that is not open.
const Invalid Handle = -1

// ErrWouldBlock is returned by Read and Write on a nonblocking handle whose
// operation cannot make progress. Callers re-arm through Wait.
var ErrWouldBlock = errors.New(errors.ErrCodeSystem, "operation would block")

// Valid reports whether the handle refers to an open descriptor.
func (h Handle) Valid() bool { return h >= 0 }

// Destroy closes the handle if it is valid and returns Invalid.
// Destroying Invalid is a no-op.
func (h Handle) Destroy() Handle {
	if h.Valid() {
		_ = unix.Close(int(h))
	}
	return Invalid
}

// SetNonblock switches the handle between blocking and nonblocking I/O.
func (h Handle) SetNonblock(nonblocking bool) error {
	if err := unix.SetNonblock(int(h), nonblocking); err != nil {
		return errors.System("fcntl", asErrno(err))
	}
	return nil
}

// Dup duplicates the handle with close-on-exec set on the copy.
func (h Handle) Dup() (Handle, error) {
	fd, err := unix.FcntlInt(uintptr(h), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return Invalid, errors.System("dup", asErrno(err))
	}
	return Handle(fd), nil
}

// Read reads up to len(buf) bytes from the handle. It returns BROKEN_PIPE
// when the remote end is closed and ErrWouldBlock when a nonblocking read
// cannot make progress.
func (h Handle) Read(buf []byte) (int, error) {
	for {
		n, err := unix.Read(int(h), buf)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, ErrWouldBlock
		case err != nil:
			return 0, readError(asErrno(err))
		case n == 0 && len(buf) > 0:
			// EOF: the remote end closed its copy of the pipe.
			return 0, errors.BrokenPipe("")
		default:
			return n, nil
		}
	}
}

// Write writes up to len(buf) bytes to the handle. Short writes are
// reported through the returned count, not an error.
func (h Handle) Write(buf []byte) (int, error) {
	for {
		n, err := unix.Write(int(h), buf)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, ErrWouldBlock
		case err == unix.EPIPE:
			return 0, errors.BrokenPipe("")
		case err != nil:
			return 0, errors.System("write", asErrno(err))
		default:
			return n, nil
		}
	}
}

func readError(errno syscall.Errno) error {
	if errno == unix.EPIPE || errno == unix.ECONNRESET {
		return errors.BrokenPipe("")
	}
	return errors.System("read", errno)
}

// asErrno extracts the platform error number from a syscall error.
func asErrno(err error) syscall.Errno {
	if errno, ok := err.(syscall.Errno); ok {
		return errno
	}
	return unix.EIO
}
