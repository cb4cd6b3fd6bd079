package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	actionsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catchdex_sync_actions_processed_total",
		Help: "Queued actions confirmed by the server and removed from the queue.",
	})
	actionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catchdex_sync_actions_failed_total",
		Help: "Queued actions rejected by the server and marked failed.",
	})
	passesAborted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catchdex_sync_passes_aborted_total",
		Help: "Drain passes cut short by a network-class error.",
	})
)
