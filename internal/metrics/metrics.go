// Package metrics is the metadata transaction core's Prometheus registry:
// one shared registry plus the gRPC server metrics every RPC call is
// instrumented with.
package metrics

import (
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Registry = prometheus.NewRegistry()

	GRPCMetrics = grpcprometheus.NewServerMetrics(
		func(c *prometheus.CounterOpts) {
			c.Namespace = "graphmeta"
		},
	)
)

func init() {
	Registry.MustRegister(GRPCMetrics)
	GRPCMetrics.EnableHandlingTimeHistogram(
		func(h *prometheus.HistogramOpts) {
			h.Namespace = "graphmeta"
		},
	)
}
