package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TableBuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabloom_table_build_duration_seconds",
			Help:    "Time spent building one question's tables",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"view"},
	)

	TablesBuilt = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabloom_tables_built_total",
			Help: "Total contingency tables built",
		},
		[]string{"view"},
	)

	QuestionsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabloom_questions_skipped_total",
			Help: "Questions skipped because their table could not be composed",
		},
		[]string{"reason"},
	)

	SignificanceTests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabloom_significance_tests_total",
			Help: "Pairwise proportion tests that met their preconditions",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabloom_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"backend"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabloom_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"backend"},
	)

	CodingJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabloom_coding_jobs_total",
			Help: "Open-ended coding jobs by outcome",
		},
		[]string{"status"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabloom_http_requests_total",
			Help: "HTTP API requests",
		},
		[]string{"route", "code"},
	)
)

var once sync.Once

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(TableBuildDuration)
		prometheus.MustRegister(TablesBuilt)
		prometheus.MustRegister(QuestionsSkipped)
		prometheus.MustRegister(SignificanceTests)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(CodingJobs)
		prometheus.MustRegister(HTTPRequests)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
