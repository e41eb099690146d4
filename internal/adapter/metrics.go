package adapter

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	m "faultline.dev/pkg/faultline/internal/model"
)

// Metrics counts pipeline activity. Each run owns its registry so repeated runs
// in one process never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	outcomes      *prometheus.CounterVec
	candidates    *prometheus.CounterVec
	builds        *prometheus.CounterVec
	buildSeconds  prometheus.Histogram
	testRuns      *prometheus.CounterVec
	malformed     prometheus.Counter
	onlyFailing   prometheus.Gauge
	locationsDone prometheus.Counter
}

// NewMetrics creates a registry and registers every collector on it.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	mt := &Metrics{
		registry: reg,
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faultline",
			Subsystem: "validation",
			Name:      "outcomes_total",
			Help:      "Validated locations by outcome",
		}, []string{"outcome"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faultline",
			Subsystem: "validation",
			Name:      "candidates_total",
			Help:      "Candidate predicates by disposition",
		}, []string{"disposition"}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faultline",
			Subsystem: "build",
			Name:      "invocations_total",
			Help:      "Subject builds by result",
		}, []string{"result"}),
		buildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "faultline",
			Subsystem: "build",
			Name:      "duration_seconds",
			Help:      "Subject build duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		testRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faultline",
			Subsystem: "tests",
			Name:      "runs_total",
			Help:      "Test harness runs by result",
		}, []string{"result"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "faultline",
			Subsystem: "collector",
			Name:      "malformed_lines_total",
			Help:      "Probe-log lines that could not be parsed",
		}),
		onlyFailing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "faultline",
			Subsystem: "collector",
			Name:      "only_failing_keys",
			Help:      "Spectrum keys covered by failing tests only",
		}),
		locationsDone: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "faultline",
			Subsystem: "validation",
			Name:      "locations_total",
			Help:      "Locations processed during predicate expansion",
		}),
	}

	for _, c := range []prometheus.Collector{
		mt.outcomes, mt.candidates, mt.builds, mt.buildSeconds,
		mt.testRuns, mt.malformed, mt.onlyFailing, mt.locationsDone,
	} {
		reg.MustRegister(c)
	}

	return mt
}

// Registry exposes the underlying registry.
func (mt *Metrics) Registry() *prometheus.Registry {
	return mt.registry
}

// ObserveOutcome counts one validated location.
func (mt *Metrics) ObserveOutcome(outcome m.ValidationOutcome) {
	if mt == nil {
		return
	}

	mt.outcomes.WithLabelValues(outcome.String()).Inc()
	mt.locationsDone.Inc()
}

// ObserveCandidate counts one candidate by disposition (accepted, build_failed,
// duplicate, capped, cached).
func (mt *Metrics) ObserveCandidate(disposition string) {
	if mt == nil {
		return
	}

	mt.candidates.WithLabelValues(disposition).Inc()
}

// ObserveBuild counts one build.
func (mt *Metrics) ObserveBuild(success bool, took time.Duration) {
	if mt == nil {
		return
	}

	result := "success"
	if !success {
		result = "failure"
	}

	mt.builds.WithLabelValues(result).Inc()
	mt.buildSeconds.Observe(took.Seconds())
}

// ObserveTestRun counts one harness run.
func (mt *Metrics) ObserveTestRun(err error) {
	if mt == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}

	mt.testRuns.WithLabelValues(result).Inc()
}

// ObserveCoverage records collector statistics.
func (mt *Metrics) ObserveCoverage(cov m.Coverage) {
	if mt == nil {
		return
	}

	mt.malformed.Add(float64(cov.Malformed))
	mt.onlyFailing.Set(float64(len(cov.OnlyFailing)))
}

// WriteTextfile exports the registry in the node-exporter textfile format.
func (mt *Metrics) WriteTextfile(path m.Path) error {
	if mt == nil {
		return nil
	}

	if err := prometheus.WriteToTextfile(string(path), mt.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}

	return nil
}
