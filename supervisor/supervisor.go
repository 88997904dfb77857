//go:build unix

package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/prockit/errors"
	"github.com/kbukum/prockit/logger"
	"github.com/kbukum/prockit/observability"
	"github.com/kbukum/prockit/process"
	"github.com/kbukum/prockit/resilience"
)

// pollTick bounds how long the supervision loop blocks before rechecking
// its context and restart schedule.
const pollTick = 200 * time.Millisecond

// Spec describes one supervised child.
type Spec struct {
	// Name identifies the child within the supervisor.
	Name string
	// Argv is the child's command line, program name first.
	Argv []string
	// Options configures the child's launch. When Options.Stop is unset
	// the supervisor installs its terminate-then-kill default so shutdown
	// never hangs on an unresponsive child.
	Options process.Options
	// Restart overrides the supervisor's restart pacing for this child.
	Restart *resilience.RetryConfig
}

// Config configures a Supervisor.
type Config struct {
	// Logger receives supervision events. Nil disables logging.
	Logger *logger.Logger
	// Restart paces child restarts. MaxAttempts bounds restarts per
	// child; zero fields take the resilience defaults.
	Restart resilience.RetryConfig
	// GracefulTimeout is how long shutdown waits after terminate before
	// killing. Defaults to 5s.
	GracefulTimeout time.Duration
	// KillTimeout is how long shutdown waits after kill. Defaults to 2s.
	KillTimeout time.Duration
}

// Info is a point-in-time snapshot of one supervised child.
type Info struct {
	Name      string
	Instance  string
	Pid       int
	Running   bool
	Done      bool
	Restarts  int
	LastExit  int
	StartedAt time.Time
}

type child struct {
	spec      Spec
	proc      *process.Process
	instance  string
	restarts  int
	startedAt time.Time
	lastExit  int
	restartAt time.Time // zero when no restart is scheduled
	done      bool
}

// Supervisor owns a set of named children. Add before Run; Run drives the
// supervision loop until every child is done or the context is cancelled.
type Supervisor struct {
	cfg      Config
	log      *logger.Logger
	mu       sync.RWMutex
	children map[string]*child
	order    []string
}

// New creates an empty Supervisor.
func New(cfg Config) *Supervisor {
	cfg.Restart.ApplyDefaults()
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = 5 * time.Second
	}
	if cfg.KillTimeout <= 0 {
		cfg.KillTimeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	return &Supervisor{
		cfg:      cfg,
		log:      cfg.Logger.WithComponent("supervisor"),
		children: make(map[string]*child),
	}
}

// Add registers a child. Names must be unique.
func (s *Supervisor) Add(spec Spec) error {
	if spec.Name == "" {
		return errors.InvalidArgument("child name is required")
	}
	if len(spec.Argv) == 0 {
		return errors.InvalidArgument("child argv is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.children[spec.Name]; exists {
		return errors.InvalidArgument("child name already registered: " + spec.Name)
	}

	if spec.Options.Stop.IsZero() {
		spec.Options.Stop = process.StopActions{
			First:  process.StopAction{Kind: process.StopTerminate, Timeout: s.cfg.GracefulTimeout},
			Second: process.StopAction{Kind: process.StopKill, Timeout: s.cfg.KillTimeout},
		}
	}

	s.children[spec.Name] = &child{spec: spec}
	s.order = append(s.order, spec.Name)

	return nil
}

// Status returns a snapshot of the named child.
func (s *Supervisor) Status(name string) (Info, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.children[name]
	if !ok {
		return Info{}, false
	}

	info := Info{
		Name:      c.spec.Name,
		Instance:  c.instance,
		Pid:       -1,
		Done:      c.done,
		Restarts:  c.restarts,
		LastExit:  c.lastExit,
		StartedAt: c.startedAt,
	}
	if c.proc != nil && c.proc.Status() == process.StatusInProgress {
		info.Running = true
		info.Pid = c.proc.Pid()
	}
	return info, ok
}

// Run starts every registered child and supervises them until all are done
// or ctx is cancelled. Cancellation triggers Shutdown before returning.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, span := observability.StartSpan(ctx, "supervisor.run")
	defer span.End()

	s.mu.Lock()
	for _, name := range s.order {
		if err := s.startChild(s.children[name]); err != nil {
			s.mu.Unlock()
			s.Shutdown()
			return err
		}
	}
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			s.Shutdown()
			return ctx.Err()
		default:
		}

		if s.step() {
			return nil
		}
	}
}

// step performs one supervision round: due restarts, one poll, and exit
// handling. It reports whether every child is done.
func (s *Supervisor) step() bool {
	s.mu.Lock()

	now := time.Now()
	timeout := pollTick

	var sources []process.Source
	var polled []*child
	active := false

	for _, name := range s.order {
		c := s.children[name]

		if !c.restartAt.IsZero() {
			if now.Before(c.restartAt) {
				active = true
				if until := c.restartAt.Sub(now); until < timeout {
					timeout = until
				}
				continue
			}
			if err := s.startChild(c); err != nil {
				s.log.Error("restart failed", logger.ErrorFields("start", err))
				c.done = true
				continue
			}
		}

		if c.proc != nil && c.proc.Status() == process.StatusInProgress {
			active = true
			sources = append(sources, process.Source{Process: c.proc, Interests: process.EventExit})
			polled = append(polled, c)
		}
	}

	if len(sources) == 0 {
		s.mu.Unlock()
		if !active {
			return true
		}
		time.Sleep(timeout)
		return false
	}

	err := process.Poll(sources, timeout)
	if errors.IsTimedOut(err) {
		s.mu.Unlock()
		return false
	}
	if err != nil {
		s.mu.Unlock()
		s.log.Error("poll failed", logger.ErrorFields("poll", err))
		return false
	}

	for i := range sources {
		c := polled[i]
		switch {
		case sources[i].Events&process.EventDeadline != 0:
			s.log.Warn("child exceeded its deadline", logger.Fields(
				logger.FieldProcess, c.spec.Name,
				logger.FieldInstance, c.instance,
			))
			s.stopChild(c)
		case sources[i].Events&process.EventExit != 0:
			s.reapChild(c)
		}
	}

	s.mu.Unlock()
	return false
}

// startChild launches a fresh incarnation. Callers hold the lock.
func (s *Supervisor) startChild(c *child) error {
	p := process.New()
	opts := c.spec.Options
	if opts.Logger == nil {
		opts.Logger = s.log
	}

	if err := p.Start(c.spec.Argv, opts); err != nil {
		p.Destroy()
		return err
	}

	c.proc = p
	c.instance = uuid.NewString()
	c.startedAt = time.Now()
	c.restartAt = time.Time{}
	c.done = false

	s.log.Info("child started", logger.Fields(
		logger.FieldProcess, c.spec.Name,
		logger.FieldInstance, c.instance,
		logger.FieldPID, p.Pid(),
		logger.FieldAttempt, c.restarts,
	))

	return nil
}

// reapChild collects the exit of a child and schedules its restart when
// policy allows. Callers hold the lock.
func (s *Supervisor) reapChild(c *child) {
	code, err := c.proc.Wait(process.Infinite)
	if err != nil {
		s.log.Error("wait failed", logger.ErrorFields("wait", err))
		code = -1
	}
	c.proc = c.proc.Destroy()
	c.lastExit = code

	s.log.Info("child exited", logger.Fields(
		logger.FieldProcess, c.spec.Name,
		logger.FieldInstance, c.instance,
		logger.FieldStatus, code,
	))

	if code == 0 {
		c.done = true
		return
	}

	policy := s.cfg.Restart
	if c.spec.Restart != nil {
		policy = *c.spec.Restart
		policy.ApplyDefaults()
	}

	if c.restarts >= policy.MaxAttempts {
		s.log.Warn("child gave up after repeated failures", logger.Fields(
			logger.FieldProcess, c.spec.Name,
			logger.FieldAttempt, c.restarts,
		))
		c.done = true
		return
	}

	c.restarts++
	backoff := policy.Backoff(c.restarts)
	c.restartAt = time.Now().Add(backoff)

	s.log.Info("child restart scheduled", logger.Fields(
		logger.FieldProcess, c.spec.Name,
		logger.FieldAttempt, c.restarts,
		logger.FieldDuration, backoff.Milliseconds(),
	))
}

// stopChild escalates the child's stop actions and reaps it. Callers hold
// the lock.
func (s *Supervisor) stopChild(c *child) {
	code, err := c.proc.Stop(c.spec.Options.Stop)
	if err != nil {
		s.log.Error("stop failed", logger.ErrorFields("stop", err))
	}
	c.proc = c.proc.Destroy()
	c.lastExit = code
	c.done = true
}

// Shutdown stops every running child through its stop escalation and
// cancels pending restarts.
func (s *Supervisor) Shutdown() {
	_, span := observability.StartSpan(context.Background(), "supervisor.shutdown")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range s.order {
		c := s.children[name]
		c.restartAt = time.Time{}
		if c.proc != nil && c.proc.Status() == process.StatusInProgress {
			s.log.Info("stopping child", logger.Fields(
				logger.FieldProcess, c.spec.Name,
				logger.FieldInstance, c.instance,
			))
			s.stopChild(c)
		} else if c.proc != nil {
			c.proc = c.proc.Destroy()
		}
		c.done = true
	}
}
