// Package supervisor runs a set of named child processes on top of the
// process poll multiplexer: one loop watches every child's exit and
// deadline, restarts crashed children with exponential backoff, and
// escalates the configured stop actions on shutdown.
//
//	s := supervisor.New(supervisor.Config{Logger: log})
//	s.Add(supervisor.Spec{Name: "worker", Argv: []string{"worker", "--queue", "q1"}})
//	err := s.Run(ctx)
package supervisor
