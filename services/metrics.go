package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	participationToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitchallenge",
		Name:      "participation_toggles_total",
		Help:      "Join and leave requests by action and whether they changed anything.",
	}, []string{"action", "changed"})

	commentMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitchallenge",
		Name:      "comment_mutations_total",
		Help:      "Comment creates, edits and deletes.",
	}, []string{"op"})

	reactionToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitchallenge",
		Name:      "reaction_toggles_total",
		Help:      "Reaction toggles by kind and resulting action.",
	}, []string{"kind", "action"})

	txRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitchallenge",
		Name:      "tx_retries_total",
		Help:      "Transactions retried after a serialization failure or deadlock.",
	}, []string{"op"})

	reconcileRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitchallenge",
		Name:      "reconcile_repairs_total",
		Help:      "Denormalized counters repaired by the reconciler.",
	}, []string{"counter"})
)

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
