// Package process supervises child processes with redirected standard
// streams. It exposes a per-process lifecycle machine (start, read, write,
// close, wait, terminate, kill, stop, destroy), a poll multiplexer that
// waits on any mix of streams across multiple processes under a global
// timeout and per-process deadlines, and a three-stage graceful stop
// escalation.
//
//	p := process.New()
//	if err := p.Start([]string{"cat"}, process.Options{}); err != nil { ... }
//	p.Write([]byte("hello"))
//	p.Close(redirect.In)
//	out, errs, _ := process.DrainStrings(p)
//	code, _ := p.Wait(process.Infinite)
//	p.Destroy()
//
// A Process is not safe for concurrent use from multiple goroutines;
// callers synchronize externally. Parallelism across processes comes from
// Poll, not from internal goroutines: every operation completes
// synchronously or blocks the calling goroutine.
package process
