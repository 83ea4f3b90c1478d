package point

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loyalty_point_entries_total",
		Help: "Point ledger entries written, by status.",
	}, []string{"status"})

	pointsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loyalty_points_total",
		Help: "Point amounts written to the ledger, by status.",
	}, []string{"status"})

	allocationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_point_allocation_failures_total",
		Help: "Debits rejected because FIFO allocation could not cover them.",
	})
)
