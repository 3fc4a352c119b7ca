// Package metrics records kubectl call outcomes for a single wfctl run and
// exports them as a Prometheus textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codex-k8s/wfctl/internal/fault"
)

const namespace = "wfctl"

// ResultOK labels successful calls; failures use the fault kind name.
const ResultOK = "ok"

// Recorder implements kube.Observer.
type Recorder struct {
	registry    *prometheus.Registry
	calls       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	submissions *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kubectl",
			Name:      "calls_total",
			Help:      "kubectl invocations by operation and result",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kubectl",
			Name:      "call_duration_seconds",
			Help:      "kubectl invocation latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Workflow submissions by template and result",
		}, []string{"template", "result"}),
	}
	r.registry.MustRegister(r.calls, r.duration, r.submissions)
	return r
}

// ObserveCall records one kubectl invocation.
func (r *Recorder) ObserveCall(op string, elapsed time.Duration, err error) {
	r.calls.WithLabelValues(op, result(err)).Inc()
	r.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveSubmission records one workflow submission attempt.
func (r *Recorder) ObserveSubmission(template string, err error) {
	r.submissions.WithLabelValues(template, result(err)).Inc()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all metrics to path in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile %q: %w", path, err)
	}
	return nil
}

func result(err error) string {
	if err == nil {
		return ResultOK
	}
	return fault.Classify(err, "").Kind.String()
}
