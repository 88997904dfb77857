//go:build unix

package handle

import (
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/kbukum/prockit/errors"
)

// Pair creates a connected unidirectional pipe and returns its read and
// write ends. Both ends are created with close-on-exec set; the launcher
// duplicates whichever end the child inherits.
func Pair() (r, w Handle, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return Invalid, Invalid, pipeError(asErrno(err))
	}
	return Handle(fds[0]), Handle(fds[1]), nil
}

func pipeError(errno syscall.Errno) error {
	if errno == unix.ENOMEM {
		return errors.OutOfMemory().WithCause(errno)
	}
	return errors.System("pipe", errno)
}
