package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contractscan_analysis_duration_seconds",
			Help:    "Directory analysis duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"operation"},
	)

	AnalysisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contractscan_analysis_total",
			Help: "Total analysis runs",
		},
		[]string{"status"},
	)

	DocumentsClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contractscan_documents_classified_total",
			Help: "Total documents classified, by resulting type",
		},
		[]string{"document_type"},
	)

	ClassificationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contractscan_classification_failures_total",
			Help: "Total classification failures recorded as diagnostics",
		},
	)

	ExtractionFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contractscan_extraction_failures_total",
			Help: "Total text extraction failures",
		},
	)

	OracleRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contractscan_oracle_requests_total",
			Help: "Total oracle requests by outcome",
		},
		[]string{"status"},
	)

	OracleRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contractscan_oracle_retries_total",
			Help: "Total oracle retries by failure class",
		},
		[]string{"class"},
	)

	ScanCost = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contractscan_scan_cost_usd",
			Help: "Estimated cumulative scan cost in USD",
		},
	)

	MainContractConfidence = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contractscan_main_contract_confidence_total",
			Help: "Main contract identifications by confidence grade",
		},
		[]string{"confidence"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contractscan_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contractscan_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	ChatMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contractscan_chat_messages_total",
			Help: "Total chat messages by role",
		},
		[]string{"role"},
	)
)

func Init() {
	prometheus.MustRegister(AnalysisDuration)
	prometheus.MustRegister(AnalysisTotal)
	prometheus.MustRegister(DocumentsClassified)
	prometheus.MustRegister(ClassificationFailures)
	prometheus.MustRegister(ExtractionFailures)
	prometheus.MustRegister(OracleRequests)
	prometheus.MustRegister(OracleRetries)
	prometheus.MustRegister(ScanCost)
	prometheus.MustRegister(MainContractConfidence)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(ChatMessages)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
