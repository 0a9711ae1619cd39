// Package metrics records reservation and provisioning metrics and exports
// them in the Prometheus text format for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fleetctl"

// Host actions counted by HostsTotal.
const (
	ActionReserved    = "reserved"
	ActionReleased    = "released"
	ActionUnavailable = "unavailable"
)

// Recorder holds the metric collectors of one process. A nil *Recorder
// records nothing, so callers never need to check whether metrics are on.
type Recorder struct {
	registry *prometheus.Registry

	reserveRounds     prometheus.Counter
	hostsTotal        *prometheus.CounterVec
	probesTotal       *prometheus.CounterVec
	rebuildsTotal     *prometheus.CounterVec
	jobsTotal         *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	lastSuccess       *prometheus.GaugeVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		reserveRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reservation",
			Name:      "rounds_total",
			Help:      "Total number of reservation rounds",
		}),
		hostsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reservation",
				Name:      "hosts_total",
				Help:      "Total number of hosts by reservation action",
			},
			[]string{"action"},
		),
		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ssh",
				Name:      "probes_total",
				Help:      "Total number of reachability probes by result",
			},
			[]string{"result"},
		),
		rebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provisioning",
				Name:      "rebuilds_total",
				Help:      "Total number of host rebuilds by result",
			},
			[]string{"result"},
		),
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "completed_total",
				Help:      "Total number of completed per-host jobs by result",
			},
			[]string{"result"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of top-level operations in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~4.5h
			},
			[]string{"operation", "result"},
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful operation",
			},
			[]string{"operation"},
		),
	}

	r.registry.MustRegister(
		r.reserveRounds,
		r.hostsTotal,
		r.probesTotal,
		r.rebuildsTotal,
		r.jobsTotal,
		r.operationDuration,
		r.lastSuccess,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ReserveRound counts one reservation round.
func (r *Recorder) ReserveRound() {
	if r != nil {
		r.reserveRounds.Inc()
	}
}

// Hosts adds n hosts for action.
func (r *Recorder) Hosts(action string, n int) {
	if r != nil && n > 0 {
		r.hostsTotal.WithLabelValues(action).Add(float64(n))
	}
}

// Probe records a probe outcome.
func (r *Recorder) Probe(up bool) {
	if r != nil {
		r.probesTotal.WithLabelValues(upDown(up)).Inc()
	}
}

// Rebuild records a rebuild outcome: "ok", "failed" or "timeout".
func (r *Recorder) Rebuild(result string) {
	if r != nil {
		r.rebuildsTotal.WithLabelValues(result).Inc()
	}
}

// Job records a completed job by exit code.
func (r *Recorder) Job(exitCode int) {
	if r == nil {
		return
	}
	result := "ok"
	if exitCode != 0 {
		result = "failed"
	}
	r.jobsTotal.WithLabelValues(result).Inc()
}

// Operation records the duration and outcome of a top-level operation.
func (r *Recorder) Operation(name string, start, end time.Time, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	r.operationDuration.WithLabelValues(name, result).Observe(end.Sub(start).Seconds())
	if err == nil {
		r.lastSuccess.WithLabelValues(name).Set(float64(end.Unix()))
	}
}

// WriteTextfile writes all metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

func upDown(up bool) string {
	if up {
		return "up"
	}
	return "down"
}
