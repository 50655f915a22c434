package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "yoyaku"

var (
	once sync.Once

	formPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "form_published_total",
			Help:      "Count of publish attempts by result (deployed, skipped, error).",
		},
		[]string{"result"},
	)

	renderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent assembling a booking page.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	pageBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_page_bytes",
			Help:      "Size of the most recently rendered booking page.",
		},
	)

	calendarLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_lookup_total",
			Help:      "Count of free/busy lookups by source (cache, api, error).",
		},
		[]string{"source"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_sent_total",
			Help:      "Count of Telegram notifications by status.",
		},
		[]string{"status"},
	)

	configProblems = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_problem_total",
			Help:      "Count of form config sections dropped during parsing.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(formPublished, renderDuration, pageBytes, calendarLookups, notifications, configProblems)
	})
}

func IncFormPublished(result string) {
	formPublished.WithLabelValues(result).Inc()
}

func ObserveRender(d time.Duration, size int) {
	renderDuration.Observe(d.Seconds())
	pageBytes.Set(float64(size))
}

func IncCalendarLookup(source string) {
	calendarLookups.WithLabelValues(source).Inc()
}

func IncNotification(status string) {
	notifications.WithLabelValues(status).Inc()
}

func AddConfigProblems(n int) {
	configProblems.Add(float64(n))
}
