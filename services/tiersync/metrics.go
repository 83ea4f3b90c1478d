package tiersync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	usersScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_tier_sync_users_scanned_total",
		Help: "Users evaluated by tier sync.",
	})

	tierChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loyalty_tier_sync_changes_total",
		Help: "Tier placements changed by tier sync, by target tier.",
	}, []string{"tier_id"})

	userFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loyalty_tier_sync_user_failures_total",
		Help: "Users tier sync could not evaluate.",
	})
)
