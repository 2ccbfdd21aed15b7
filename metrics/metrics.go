// Package metrics exposes the node driver's progress as Prometheus
// gauges, the same promauto-registered package-global pattern prysm's
// execution-layer watcher uses for its deposit-count/block-number gauges.
package metrics

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lumen_node"

var (
	FinalizedHead = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "finalized_head",
		Help:      "L2 block number of the most recently finalized head.",
	})
	SafeHead = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "safe_head",
		Help:      "L2 block number of the most recently derived safe head.",
	})
	UnsafeHead = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "unsafe_head",
		Help:      "L2 block number of the current unsafe (possibly gossiped) head.",
	})
	Synced = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "synced",
		Help:      "1 while no derived safe block is waiting for its L1 inclusion block to finalize, 0 otherwise.",
	})
	L1CurrentEpoch = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "l1_current_epoch",
		Help:      "L1 block number of the most recently observed L1 origin.",
	})
	ReorgsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reorgs_total",
		Help:      "Number of L1 reorgs the watcher has detected.",
	})
	PipelineResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_resets_total",
		Help:      "Number of times the derivation pipeline has been rebuilt from a new epoch.",
	})
)

// ListenAndServe serves the default Prometheus registry until ctx is
// canceled.
func ListenAndServe(ctx context.Context, hostname string, port int) error {
	addr := net.JoinHostPort(hostname, strconv.Itoa(port))
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.Handler(),
	}
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	select {
	case <-ctx.Done():
		return server.Close()
	case err := <-errCh:
		return err
	}
}
