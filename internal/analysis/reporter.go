// Package analysis implements the Analysis Reporter: it aggregates
// named metric series recorded by every other subsystem, classifies
// score-delta trends, and renders periodic or on-demand reports in one
// of six kinds. Grounded on the snapshot/history/prune shape of
// internal/metrics.Collector (TakeSnapshot, GetHistory, bounded
// pruning) and internal/metrics/alerts.go's threshold-rule
// recommendations, generalized from per-agent metrics to arbitrary
// named series backed by a Prometheus registry.
package analysis

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReportKind is the closed set of report shapes the reporter can emit.
type ReportKind string

const (
	KindSummary          ReportKind = "summary"
	KindDetailed         ReportKind = "detailed"
	KindTrend            ReportKind = "trend"
	KindPredictive       ReportKind = "predictive"
	KindLearningInsights ReportKind = "learning_insights"
	KindPerformanceMetrics ReportKind = "performance_metrics"
)

// Config bounds report retention and trend sensitivity.
type Config struct {
	RetentionCount   int
	RetentionAge     time.Duration
	TrendSensitivity float64
}

// DefaultConfig retains 200 reports for up to 30 days, with a 5%
// relative-change sensitivity for trend classification.
func DefaultConfig() Config {
	return Config{RetentionCount: 200, RetentionAge: 30 * 24 * time.Hour, TrendSensitivity: 0.05}
}

// MetricPoint is one timestamped observation in a series.
type MetricPoint struct {
	Timestamp time.Time
	Value     float64
}

// MetricSeries is a named, time-ordered run of observations.
type MetricSeries struct {
	Name   string
	Points []MetricPoint
}

// Report is one emitted analysis artifact.
type Report struct {
	ID              string
	Kind            ReportKind
	GeneratedAt     time.Time
	Window          time.Duration
	Series          []MetricSeries
	Trends          map[string]TrendDirection
	Recommendations []string
	Summary         string
}

// Reporter records named metrics through a Prometheus gauge vector and
// periodically or on-demand renders them into Reports.
type Reporter struct {
	cfg      Config
	registry *prometheus.Registry
	gauges   *prometheus.GaugeVec

	mu      sync.Mutex
	series  map[string][]MetricPoint
	reports []Report
	nextID  int
}

// New constructs a reporter backed by a fresh Prometheus registry.
func New(cfg Config) *Reporter {
	registry := prometheus.NewRegistry()
	gauges := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rhema",
		Subsystem: "coordinator",
		Name:      "metric_value",
		Help:      "Last recorded value of a named coordination metric.",
	}, []string{"metric"})
	registry.MustRegister(gauges)

	return &Reporter{
		cfg:      cfg,
		registry: registry,
		gauges:   gauges,
		series:   make(map[string][]MetricPoint),
	}
}

// Registry exposes the underlying Prometheus registry for HTTP
// exposition; internal/httpapi registers no /metrics route for it.
func (r *Reporter) Registry() *prometheus.Registry { return r.registry }

// RecordMetric sets a named metric's current value, both on the
// Prometheus gauge (for external scraping) and in an in-memory series
// history the reporter itself reads back for trend computation —
// Prometheus registries expose only the latest value, not history.
func (r *Reporter) RecordMetric(name string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gauges.WithLabelValues(name).Set(value)
	r.series[name] = append(r.series[name], MetricPoint{Timestamp: time.Now(), Value: value})
}

func (r *Reporter) seriesWithinWindow(name string, window time.Duration) MetricSeries {
	cutoff := time.Now().Add(-window)
	var points []MetricPoint
	for _, p := range r.series[name] {
		if window <= 0 || !p.Timestamp.Before(cutoff) {
			points = append(points, p)
		}
	}
	return MetricSeries{Name: name, Points: points}
}

// Generate renders a report of the given kind over window (0 = all
// history), classifies each series' trend, and retains the report
// under the configured bounds.
func (r *Reporter) Generate(kind ReportKind, window time.Duration) Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.series))
	for name := range r.series {
		names = append(names, name)
	}
	sort.Strings(names)

	report := Report{
		Kind:        kind,
		GeneratedAt: time.Now(),
		Window:      window,
		Trends:      make(map[string]TrendDirection),
	}
	r.nextID++
	report.ID = fmt.Sprintf("report-%d", r.nextID)

	for _, name := range names {
		s := r.seriesWithinWindow(name, window)
		report.Series = append(report.Series, s)
		report.Trends[name] = ClassifyTrend(values(s.Points), r.cfg.TrendSensitivity)
	}

	report.Recommendations = recommend(kind, report.Trends)
	report.Summary = summarize(kind, report)

	r.reports = append(r.reports, report)
	r.pruneLocked()

	return report
}

func values(points []MetricPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

func (r *Reporter) pruneLocked() {
	cutoff := time.Now().Add(-r.cfg.RetentionAge)
	kept := r.reports[:0]
	for _, rep := range r.reports {
		if r.cfg.RetentionAge <= 0 || rep.GeneratedAt.After(cutoff) {
			kept = append(kept, rep)
		}
	}
	r.reports = kept

	if limit := r.cfg.RetentionCount; limit > 0 && len(r.reports) > limit {
		drop := len(r.reports) - limit
		r.reports = append([]Report(nil), r.reports[drop:]...)
	}
}

// Reports returns up to limit of the most recently generated reports
// (0 = all retained).
func (r *Reporter) Reports(limit int) []Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.reports)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Report, limit)
	copy(out, r.reports[n-limit:])
	return out
}

// recommend renders threshold-rule recommendations per kind, matching
// the shouldAlert-style rule pattern from internal/metrics/alerts.go
// generalized from agent-idle/error-rate thresholds to series trends.
func recommend(kind ReportKind, trends map[string]TrendDirection) []string {
	var out []string
	for name, t := range trends {
		switch t {
		case TrendDeclining:
			out = append(out, fmt.Sprintf("investigate sustained decline in %q", name))
		case TrendFluctuating:
			out = append(out, fmt.Sprintf("%q is unstable; consider widening the observation window", name))
		}
	}
	if kind == KindLearningInsights && len(out) == 0 {
		out = append(out, "no degrading signals observed this window")
	}
	sort.Strings(out)
	return out
}
