// Package metrics defines Prometheus metrics for pathmerge.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pathmerge_http_request_duration_seconds",
			Help:    "Ops API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathmerge_http_requests_total",
			Help: "Total ops API requests",
		},
		[]string{"method", "path", "status"},
	)

	DocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathmerge_documents_total",
			Help: "Source documents processed, by outcome",
		},
		[]string{"status"},
	)

	ReplacementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathmerge_replacements_total",
			Help: "Source nodes replaced by a canonical node, by namespace and resolution method",
		},
		[]string{"namespace", "method"},
	)

	MappingEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pathmerge_mapping_entries",
			Help: "Unambiguous identifiers in the current mapping table",
		},
		[]string{"namespace"},
	)

	MappingAmbiguous = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pathmerge_mapping_ambiguous",
			Help: "Identifiers excluded from the current mapping table as ambiguous",
		},
		[]string{"namespace"},
	)

	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pathmerge_commit_duration_seconds",
			Help:    "Time spent committing one staging graph to the target",
			Buckets: prometheus.DefBuckets,
		},
	)

	AugmentedXrefsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathmerge_augmented_xrefs_total",
			Help: "Canonical relationship xrefs added to source entities",
		},
		[]string{"namespace"},
	)

	InvariantViolations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pathmerge_invariant_violations_total",
			Help: "Documents abandoned because a replaced node was still referenced",
		},
	)

	TargetNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pathmerge_target_nodes",
			Help: "Nodes in the target graph at the last stats request",
		},
	)

	TargetEdges = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pathmerge_target_edges",
			Help: "Forward edges in the target graph at the last stats request",
		},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathmerge_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal,
		DocumentsTotal, ReplacementsTotal,
		MappingEntries, MappingAmbiguous,
		CommitDuration, AugmentedXrefsTotal,
		InvariantViolations, ErrorsTotal,
		TargetNodes, TargetEdges,
	)
}
