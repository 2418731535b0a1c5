// Package metrics exposes import and notification counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/ExamSeat/internal/core"
)

// Collector implements core.MetricsRecorder on Prometheus collectors.
type Collector struct {
	imports        *prometheus.CounterVec
	importDuration prometheus.Histogram
	sessions       *prometheus.CounterVec
	rowsSkipped    prometheus.Counter
	seatGen        *prometheus.CounterVec
	reminders      *prometheus.CounterVec
}

var _ core.MetricsRecorder = (*Collector)(nil)

// NewCollector registers the collectors on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examseat_imports_total",
			Help: "Spreadsheet imports by outcome.",
		}, []string{"outcome"}),
		importDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "examseat_import_duration_seconds",
			Help:    "Wall time of spreadsheet imports.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examseat_sessions_reconciled_total",
			Help: "Exam sessions reconciled, by resolution path.",
		}, []string{"path"}),
		rowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "examseat_rows_skipped_total",
			Help: "Spreadsheet rows skipped during normalization.",
		}),
		seatGen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examseat_seat_generations_total",
			Help: "Seat generation calls by success.",
		}, []string{"ok"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examseat_reminders_total",
			Help: "Reminder emails by success.",
		}, []string{"ok"}),
	}

	reg.MustRegister(
		c.imports,
		c.importDuration,
		c.sessions,
		c.rowsSkipped,
		c.seatGen,
		c.reminders,
	)
	return c
}

func (c *Collector) ImportFinished(outcome string, d time.Duration) {
	c.imports.WithLabelValues(outcome).Inc()
	c.importDuration.Observe(d.Seconds())
}

// SessionReconciled counts sessions per path. "inserted" and "reused" mean
// the composite-key constraint was missing and the fallback ran.
func (c *Collector) SessionReconciled(path core.SessionPath) {
	c.sessions.WithLabelValues(string(path)).Inc()
}

func (c *Collector) RowsSkipped(n int) {
	if n > 0 {
		c.rowsSkipped.Add(float64(n))
	}
}

func (c *Collector) SeatGeneration(ok bool) {
	c.seatGen.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

func (c *Collector) ReminderSent(ok bool) {
	c.reminders.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

// Handler serves the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
