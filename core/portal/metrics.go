package portal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mutation outcomes
const (
	outcomeOK          = "ok"
	outcomeCompensated = "compensated"
	outcomeReloaded    = "reloaded"
	outcomeNoop        = "noop"
)

var mutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "taarifa",
		Name:      "mutations_total",
		Help:      "Number of local mutations by entity, operation and outcome.",
	},
	[]string{"entity", "op", "outcome"},
)

func observe(entity, op, outcome string) {
	mutationsTotal.WithLabelValues(entity, op, outcome).Inc()
}
