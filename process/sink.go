//go:build unix

package process

import (
	"bytes"
	"io"

	"github.com/kbukum/prockit/errors"
	"github.com/kbukum/prockit/redirect"
)

// Sink consumes output chunks produced by Drain. The data slice is only
// valid for the duration of the call.
type Sink func(stream redirect.Stream, data []byte) error

// BufferSink appends every chunk to buf regardless of stream.
func BufferSink(buf *bytes.Buffer) Sink {
	return func(_ redirect.Stream, data []byte) error {
		buf.Write(data)
		return nil
	}
}

// WriterSink forwards every chunk to w.
func WriterSink(w io.Writer) Sink {
	return func(_ redirect.Stream, data []byte) error {
		_, err := w.Write(data)
		return err
	}
}

// Drain reads the child's stdout and stderr to completion, passing chunks
// to the corresponding sinks. It returns once both pipes have reported
// end-of-stream. A deadline expiry surfaces as TIMED_OUT.
func Drain(p *Process, out, errSink Sink) error {
	if p == nil {
		return errors.InvalidArgument("process is required")
	}
	if p.status == StatusInChild {
		return errors.InvalidArgument("operation illegal in the child branch")
	}
	if out == nil || errSink == nil {
		return errors.InvalidArgument("both sinks are required")
	}

	buf := make([]byte, 4096)

	for p.pipes.out.Valid() || p.pipes.err.Valid() {
		sources := []Source{{Process: p, Interests: EventOut | EventErr}}

		err := Poll(sources, Infinite)
		if errors.IsBrokenPipe(err) {
			break
		}
		if err != nil {
			return err
		}
		if sources[0].Events&EventDeadline != 0 {
			return errors.TimedOut("drain")
		}

		if sources[0].Events&EventOut != 0 {
			if err := drainOne(p, redirect.Out, buf, out); err != nil {
				return err
			}
		}
		if sources[0].Events&EventErr != 0 {
			if err := drainOne(p, redirect.Err, buf, errSink); err != nil {
				return err
			}
		}
	}

	return nil
}

func drainOne(p *Process, stream redirect.Stream, buf []byte, sink Sink) error {
	n, err := p.Read(stream, buf)
	if errors.IsBrokenPipe(err) {
		// End of stream; Read already invalidated the pipe.
		return nil
	}
	if err != nil {
		return err
	}
	return sink(stream, buf[:n])
}

// DrainStrings drains both streams into separate strings.
func DrainStrings(p *Process) (stdout, stderr string, err error) {
	var outBuf, errBuf bytes.Buffer
	err = Drain(p, BufferSink(&outBuf), BufferSink(&errBuf))
	return outBuf.String(), errBuf.String(), err
}
