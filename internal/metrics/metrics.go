// Package metrics defines the Prometheus metrics exported by a wikinet run.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ArticleRequests counts article source calls by operation (text, links,
	// exists) and result (ok, not_found, error, cached).
	ArticleRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikinet_article_requests_total",
			Help: "Total number of article source requests",
		},
		[]string{"op", "result"},
	)

	// CorrelationLookups counts correlation cache lookups by result (hit, miss).
	CorrelationLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikinet_correlation_lookups_total",
			Help: "Total number of correlation cache lookups",
		},
		[]string{"result"},
	)

	// OracleCalls counts similarity oracle invocations by result (ok, error).
	OracleCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikinet_oracle_calls_total",
			Help: "Total number of similarity oracle invocations",
		},
		[]string{"result"},
	)

	// OracleDuration measures similarity computation time.
	OracleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wikinet_oracle_duration_seconds",
			Help:    "Duration of similarity oracle calls in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
	)

	// EdgesAdmitted counts edges added to the graph.
	EdgesAdmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wikinet_edges_admitted_total",
			Help: "Total number of edges admitted into the graph",
		},
	)

	// GraphNodes tracks the current node count.
	GraphNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wikinet_graph_nodes",
			Help: "Number of nodes in the graph being built",
		},
	)

	// GraphEdges tracks the current edge count.
	GraphEdges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wikinet_graph_edges",
			Help: "Number of edges in the graph being built",
		},
	)

	// CheckpointWrites counts checkpoint writes by destination and result.
	CheckpointWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikinet_checkpoint_writes_total",
			Help: "Total number of checkpoint writes",
		},
		[]string{"destination", "result"},
	)
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
