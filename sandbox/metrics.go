// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer receives lifecycle and run events from a Manager.
type Observer interface {
	SandboxCreated(active int)
	SandboxDestroyed(active int)
	// CommandCompleted is called after every RunCommand that reached
	// the runner. Exactly one of result and err is nil.
	CommandCompleted(result *RunResult, err error)
}

// Run outcomes used as the "outcome" label.
const (
	outcomeExited   = "exited"
	outcomeFailed   = "failed"
	outcomeTimedOut = "timed_out"
	outcomeError    = "error"
)

// PrometheusObserver exports sandbox metrics to Prometheus.
type PrometheusObserver struct {
	active      prometheus.Gauge
	created     prometheus.Counter
	destroyed   prometheus.Counter
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	truncations prometheus.Counter
}

// NewPrometheusObserver registers the sandbox metrics with reg, or the
// default registerer when reg is nil.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "macaroni"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	observer := &PrometheusObserver{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sandboxes_active",
			Help:      "Number of sandboxes currently registered.",
		}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sandboxes_created_total",
			Help:      "Sandboxes created.",
		}),
		destroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sandboxes_destroyed_total",
			Help:      "Sandboxes destroyed, including those removed at shutdown.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands run in sandboxes, by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Wall time of commands run in sandboxes.",
			Buckets:   prometheus.DefBuckets,
		}),
		truncations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_output_truncated_total",
			Help:      "Captured output streams cut at the size limit.",
		}),
	}

	collectors := []prometheus.Collector{
		observer.active, observer.created, observer.destroyed,
		observer.runs, observer.runDuration, observer.truncations,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				return nil, fmt.Errorf("sandbox metrics already registered under namespace %q: %w", namespace, err)
			}
			return nil, fmt.Errorf("registering sandbox metric: %w", err)
		}
	}
	return observer, nil
}

func (o *PrometheusObserver) SandboxCreated(active int) {
	o.created.Inc()
	o.active.Set(float64(active))
}

func (o *PrometheusObserver) SandboxDestroyed(active int) {
	o.destroyed.Inc()
	o.active.Set(float64(active))
}

func (o *PrometheusObserver) CommandCompleted(result *RunResult, err error) {
	if err != nil {
		o.runs.WithLabelValues(outcomeError).Inc()
		return
	}
	o.runDuration.Observe(result.Duration.Seconds())
	if result.StdoutTruncated {
		o.truncations.Inc()
	}
	if result.StderrTruncated {
		o.truncations.Inc()
	}
	switch {
	case result.TimedOut:
		o.runs.WithLabelValues(outcomeTimedOut).Inc()
	case result.ExitCode != 0:
		o.runs.WithLabelValues(outcomeFailed).Inc()
	default:
		o.runs.WithLabelValues(outcomeExited).Inc()
	}
}

type nopObserver struct{}

func (nopObserver) SandboxCreated(int) {}

func (nopObserver) SandboxDestroyed(int) {}

func (nopObserver) CommandCompleted(*RunResult, error) {}
