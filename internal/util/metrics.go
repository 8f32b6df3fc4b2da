package util

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "muxpeer"

// Registry exposes Stats as Prometheus metrics. It is separate from the
// default registry so only multiplex counters are served.
var Registry = newRegistry()

func counterFunc(name, help string, load func() int64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(load()) })
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		counterFunc("peers_registered_total", "Virtual peers registered in this process.", Stats.TotalPeers.Load),
		counterFunc("peers_closed_total", "Virtual peers closed in this process.", Stats.ClosedPeers.Load),
		counterFunc("bytes_sent_total", "Encoded bytes submitted to the physical transport.", Stats.BytesSent.Load),
		counterFunc("bytes_received_total", "Encoded bytes received from the physical transport.", Stats.BytesRecv.Load),
		counterFunc("decode_errors_total", "Inbound packets that failed to decode.", Stats.DecodeErrors.Load),
		counterFunc("rejected_packets_total", "Inbound data packets dropped by routing checks.", Stats.Rejected.Load),
		counterFunc("spoofed_packets_total", "Inbound data packets dropped for a source not granted to the sender.", Stats.Spoofed.Load),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "peers_open",
			Help:      "Virtual peers currently open in this process.",
		}, func() float64 { return float64(Stats.TotalPeers.Load() - Stats.ClosedPeers.Load()) }),
	)
	return reg
}

// MetricsHandler serves Registry in the Prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
