// Package metrics holds the Prometheus collectors of the allocation core.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "capstone"

var (
	ApplicationTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "application_transitions_total",
		Help:      "Applications moved into a status, cascade withdrawals included.",
	}, []string{"to"})

	MembershipTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "membership_transitions_total",
		Help:      "Team membership state changes.",
	}, []string{"to"})

	SlotReservations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "slot_reservations_total",
		Help:      "Professor slots consumed by accepted applications.",
	})

	TxRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tx_retries_total",
		Help:      "Store transactions retried after lock contention.",
	})
)

// Register adds every collector to reg. Already registered collectors are
// not an error so tests and the CLI can call it more than once.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{ApplicationTransitions, MembershipTransitions, SlotReservations, TxRetries} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
