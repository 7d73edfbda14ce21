package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "coup"

// Metrics holds the server's collectors. Use New with a dedicated registry
// in tests so collectors do not clash between cases.
type Metrics struct {
	RoomsActive       prometheus.Gauge
	ConnectionsActive prometheus.Gauge
	ActionsDeclared   *prometheus.CounterVec
	Challenges        *prometheus.CounterVec
	TimerExpirations  *prometheus.CounterVec
	GamesFinished     prometheus.Counter
	IntentsRejected   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RoomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Rooms currently held in memory.",
		}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Open websocket connections.",
		}),
		ActionsDeclared: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_declared_total",
			Help:      "Actions accepted from the turn owner, by action type.",
		}, []string{"action"}),
		Challenges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_total",
			Help:      "Resolved challenges by kind (action, block) and outcome (proven, bluff).",
		}, []string{"kind", "outcome"}),
		TimerExpirations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timer_expirations_total",
			Help:      "Room timers that fired, by kind and whether they were stale.",
		}, []string{"kind", "stale"}),
		GamesFinished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Games that reached a winner.",
		}),
		IntentsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_rejected_total",
			Help:      "Client intents rejected with a caller-scoped error.",
		}, []string{"intent"}),
	}
}
