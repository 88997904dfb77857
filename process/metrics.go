package process

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kbukum/prockit/observability"
)

// procMetrics holds the OpenTelemetry instruments for process lifecycle
// observability.
type procMetrics struct {
	started      metric.Int64Counter
	exited       metric.Int64Counter
	signalled    metric.Int64Counter
	stopSteps    metric.Int64Counter
	pollTimeouts metric.Int64Counter
}

var activeMetrics atomic.Pointer[procMetrics]

func installMetrics() {
	meter := observability.Meter("prockit/process")

	started, err := meter.Int64Counter("process.start.total",
		metric.WithDescription("Total child processes started"),
	)
	if err != nil {
		return
	}
	exited, err := meter.Int64Counter("process.exit.total",
		metric.WithDescription("Total child process exits collected"),
	)
	if err != nil {
		return
	}
	signalled, err := meter.Int64Counter("process.signal.total",
		metric.WithDescription("Total terminate/kill signals delivered"),
	)
	if err != nil {
		return
	}
	stopSteps, err := meter.Int64Counter("process.stop.step.total",
		metric.WithDescription("Total stop escalation steps executed"),
	)
	if err != nil {
		return
	}
	pollTimeouts, err := meter.Int64Counter("process.poll.timeout.total",
		metric.WithDescription("Total poll calls that timed out"),
	)
	if err != nil {
		return
	}

	activeMetrics.Store(&procMetrics{
		started:      started,
		exited:       exited,
		signalled:    signalled,
		stopSteps:    stopSteps,
		pollTimeouts: pollTimeouts,
	})
}

func uninstallMetrics() {
	activeMetrics.Store(nil)
}

func observeStart() {
	if m := activeMetrics.Load(); m != nil {
		m.started.Add(context.Background(), 1)
	}
}

func observeExit(code int) {
	if m := activeMetrics.Load(); m != nil {
		m.exited.Add(context.Background(), 1,
			metric.WithAttributes(attribute.Int("exit_code", code)))
	}
}

func observeSignal(kind string) {
	if m := activeMetrics.Load(); m != nil {
		m.signalled.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("signal", kind)))
	}
}

func observeStopStep(kind StopKind) {
	if m := activeMetrics.Load(); m != nil {
		m.stopSteps.Add(context.Background(), 1,
			metric.WithAttributes(attribute.Int("action", int(kind))))
	}
}

func observePollTimeout() {
	if m := activeMetrics.Load(); m != nil {
		m.pollTimeouts.Add(context.Background(), 1)
	}
}
