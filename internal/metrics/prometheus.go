package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FilterDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clara_analytics_filter_duration_seconds",
			Help:    "Filter evaluation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clara_analytics_search_duration_seconds",
			Help:    "Search execution duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"status"},
	)

	SearchResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clara_analytics_search_results_count",
			Help:    "Number of results returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clara_analytics_query_duration_seconds",
			Help:    "Aggregation query duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"status"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clara_analytics_query_total",
			Help: "Total number of aggregation queries processed",
		},
		[]string{"cache_status"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clara_analytics_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clara_analytics_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	GapAnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clara_analytics_gap_analysis_duration_seconds",
			Help:    "Knowledge gap analysis duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	UnansweredQuestions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clara_analytics_unanswered_questions",
			Help: "Unanswered questions found by the latest gap analysis",
		},
	)

	KnowledgeGaps = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clara_analytics_knowledge_gaps",
			Help: "Knowledge gaps found by the latest gap analysis",
		},
	)

	ExportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clara_analytics_exports_total",
			Help: "Total exports by format and status",
		},
		[]string{"format", "status"},
	)

	ExportRecords = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clara_analytics_export_records",
			Help:    "Number of records per completed export",
			Buckets: []float64{0, 10, 100, 1000, 5000, 10000},
		},
	)
)

func Init() {
	prometheus.MustRegister(FilterDuration)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchResultsCount)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(GapAnalysisDuration)
	prometheus.MustRegister(UnansweredQuestions)
	prometheus.MustRegister(KnowledgeGaps)
	prometheus.MustRegister(ExportsTotal)
	prometheus.MustRegister(ExportRecords)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
