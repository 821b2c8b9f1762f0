package gateways

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ochairo/pkgguard/internal/domain/entities"
)

// metricsSink keeps scan counters in a private registry and rewrites a
// node-exporter textfile after every scan
type metricsSink struct {
	path     string
	registry *prometheus.Registry

	scans    *prometheus.CounterVec
	findings *prometheus.CounterVec
	duration prometheus.Histogram
	score    *prometheus.GaugeVec

	mu sync.Mutex
}

// NewMetricsSink registers the scanner metrics. An empty path keeps the
// metrics in memory only.
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewMetricsSink(path string) *metricsSink {
	s := &metricsSink{
		path:     path,
		registry: prometheus.NewRegistry(),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pkgguard_scans_total",
			Help: "Total number of scans by recommendation",
		}, []string{"recommendation"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pkgguard_findings_total",
			Help: "Total number of findings by severity and category",
		}, []string{"severity", "category"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pkgguard_scan_duration_seconds",
			Help:    "Wall time of one scan",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		score: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pkgguard_last_risk_score",
			Help: "Risk score of the most recent scan of a subject",
		}, []string{"subject"}),
	}
	s.registry.MustRegister(s.scans, s.findings, s.duration, s.score)
	return s
}

// Name identifies the sink in logs
func (s *metricsSink) Name() string { return "metrics" }

// Registry exposes the gatherer for tests and embedding
func (s *metricsSink) Registry() *prometheus.Registry { return s.registry }

// Publish records the result and refreshes the textfile
func (s *metricsSink) Publish(_ context.Context, result *entities.ScanResult) error {
	s.scans.WithLabelValues(string(result.Recommendation)).Inc()
	for _, f := range result.Findings {
		s.findings.WithLabelValues(f.Severity.String(), string(f.Category)).Inc()
	}
	s.duration.Observe(result.Duration.Seconds())
	s.score.WithLabelValues(result.Subject.Name).Set(float64(result.RiskScore))

	if s.path == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := prometheus.WriteToTextfile(s.path, s.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
