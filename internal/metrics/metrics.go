// Package metrics exposes the Prometheus series spec.md's observability
// surface calls for: restart counts per task class, broadcast attempt/ok/
// retry counters, sequence-refetch counts, and the signer's fee-token
// balance. Grounded on the teacher's own lnd /metrics surface, which
// registers everything against the default Prometheus registry and serves
// it with promhttp — the same pattern used here.
package metrics

import (
	"math/big"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	taskRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oracle_feeder",
		Name:      "task_restarts_total",
		Help:      "Number of times a task has been restarted, by task class.",
	}, []string{"task"})

	broadcastAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "oracle_feeder",
		Name:      "broadcast_attempts_total",
		Help:      "Number of transaction broadcast attempts.",
	})

	broadcastOK = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "oracle_feeder",
		Name:      "broadcast_ok_total",
		Help:      "Number of transaction broadcasts that committed successfully.",
	})

	broadcastRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "oracle_feeder",
		Name:      "broadcast_retries_total",
		Help:      "Number of transaction broadcast retries after a transport error.",
	})

	sequenceRefetches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "oracle_feeder",
		Name:      "sequence_refetches_total",
		Help:      "Number of times the signer's sequence number was refetched from the node.",
	})

	signerBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "oracle_feeder",
		Name:      "signer_balance",
		Help:      "The signing account's balance in the configured fee denom.",
	}, []string{"denom"})
)

// IncTaskRestart records one restart of the named task class.
func IncTaskRestart(taskName string) {
	taskRestarts.WithLabelValues(taskName).Inc()
}

// IncBroadcastAttempt records one broadcast attempt.
func IncBroadcastAttempt() { broadcastAttempts.Inc() }

// IncBroadcastOK records one successfully committed broadcast.
func IncBroadcastOK() { broadcastOK.Inc() }

// IncBroadcastRetry records one retry after a transport error.
func IncBroadcastRetry() { broadcastRetries.Inc() }

// IncSequenceRefetch records one sequence refetch.
func IncSequenceRefetch() { sequenceRefetches.Inc() }

// SetSignerBalance records the signer's current balance in denom. amount is
// a big.Int because on-chain balances can exceed int64, though float64's
// precision loss above 2^53 is an accepted approximation for a dashboard
// gauge.
func SetSignerBalance(denom string, amount *big.Int) {
	f, _ := new(big.Float).SetInt(amount).Float64()
	signerBalance.WithLabelValues(denom).Set(f)
}

// Serve starts a background HTTP server exposing the default Prometheus
// registry at /metrics on addr, the way the teacher's own daemon exposes
// its profiling/metrics endpoints alongside its main RPC listener.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
