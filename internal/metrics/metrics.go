// Package metrics exposes verify outcomes as Prometheus metrics, written to
// a node-exporter textfile so cron-driven checks can be scraped.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tallybooks/tally/internal/verify"
)

// Verify holds the metrics recorded after each verify pass.
type Verify struct {
	Findings    *prometheus.GaugeVec
	Repairs     *prometheus.GaugeVec
	Outstanding prometheus.Gauge
	LastRun     prometheus.Gauge
	Duration    prometheus.Gauge
}

// NewVerify registers the verify metrics on registry, or on the default
// registerer when registry is nil.
func NewVerify(registry prometheus.Registerer) *Verify {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Verify{
		Findings: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tally_verify_findings",
			Help: "Findings of the last verify pass by kind",
		},
			[]string{"kind"},
		),
		Repairs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tally_verify_repairs",
			Help: "Findings repaired automatically by the last verify pass, by kind",
		},
			[]string{"kind"},
		),
		Outstanding: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tally_verify_outstanding",
			Help: "Findings of the last verify pass that need manual correction",
		}),
		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tally_verify_last_run_timestamp_seconds",
			Help: "Unix time the last verify pass finished",
		}),
		Duration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tally_verify_duration_seconds",
			Help: "Wall time of the last verify pass",
		}),
	}
}

// Observe records a finished pass. Every kind gets a sample, zero included,
// so alerts can key on a kind disappearing.
func (m *Verify) Observe(r verify.Report, finished time.Time, took time.Duration) {
	findings := make(map[verify.Kind]int)
	repairs := make(map[verify.Kind]int)
	for _, w := range r.Warnings {
		findings[w.Kind]++
		if w.Repaired {
			repairs[w.Kind]++
		}
	}
	for _, k := range verify.Kinds() {
		m.Findings.WithLabelValues(string(k)).Set(float64(findings[k]))
		m.Repairs.WithLabelValues(string(k)).Set(float64(repairs[k]))
	}
	m.Outstanding.Set(float64(len(r.Outstanding())))
	m.LastRun.Set(float64(finished.Unix()))
	m.Duration.Set(took.Seconds())
}

// WriteTextfile writes everything gathered by g to path in the text
// exposition format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
