// Package metrics records Prometheus gauges and counters for a scrape run.
// A run is a one-shot process, so the registry is written to a node_exporter
// textfile instead of being served.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns a private registry for one run.
type Recorder struct {
	registry *prometheus.Registry

	records  prometheus.Counter
	failures *prometheus.CounterVec
	success  prometheus.Gauge
	lastRun  prometheus.Gauge
	duration prometheus.Gauge
}

// New registers the run collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harbour_scrape_records_total",
			Help: "Number of vessel movements written by the run.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harbour_scrape_failures_total",
			Help: "Failed runs, labeled by the stage that failed.",
		}, []string{"stage"}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harbour_scrape_success",
			Help: "1 if the last run completed, 0 otherwise.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harbour_scrape_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harbour_scrape_duration_seconds",
			Help: "Wall-clock duration of the last run.",
		}),
	}
	r.registry.MustRegister(r.records, r.failures, r.success, r.lastRun, r.duration)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveSuccess records a completed run.
func (r *Recorder) ObserveSuccess(records int, finished time.Time, took time.Duration) {
	r.records.Add(float64(records))
	r.success.Set(1)
	r.observeFinish(finished, took)
}

// ObserveFailure records a run that failed at stage, after writing records lines.
func (r *Recorder) ObserveFailure(stage string, records int, finished time.Time, took time.Duration) {
	r.records.Add(float64(records))
	r.failures.WithLabelValues(stage).Inc()
	r.success.Set(0)
	r.observeFinish(finished, took)
}

func (r *Recorder) observeFinish(finished time.Time, took time.Duration) {
	r.lastRun.Set(float64(finished.Unix()))
	r.duration.Set(took.Seconds())
}

// WriteTextfile writes the registry in the text exposition format. An empty
// path disables the export.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
