// Package metrics holds the Prometheus collectors shared by the client packages.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry collects every metric defined here. It is separate from the default registry so that
// embedding applications choose whether to expose it.
var Registry = prometheus.NewRegistry()

var (
	// Logins counts sign-in exchanges with the portal by result (success, failure).
	Logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kia_connect_logins_total",
			Help: "Total number of login exchanges performed against the portal.",
		},
		[]string{"result"},
	)

	// CoalescedLogins counts callers that waited on a login already in flight.
	CoalescedLogins = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kia_connect_coalesced_logins_total",
			Help: "Total number of callers that shared an in-flight login.",
		},
	)

	// Commands counts dispatched remote commands by action and result.
	Commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kia_connect_commands_total",
			Help: "Total number of remote commands dispatched.",
		},
		[]string{"action", "result"},
	)

	// TransactionPolls counts transaction status queries by result (completed, pending, error).
	TransactionPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kia_connect_transaction_polls_total",
			Help: "Total number of transaction status queries.",
		},
		[]string{"result"},
	)

	// TransactionOutcomes counts finished waits by outcome (completed, unresolved, cancelled).
	TransactionOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kia_connect_transaction_outcomes_total",
			Help: "Total number of transaction waits by final outcome.",
		},
		[]string{"outcome"},
	)

	// TransactionLatency observes how long confirmed transactions took to complete.
	TransactionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kia_connect_transaction_latency_seconds",
			Help:    "Time from dispatch to confirmed completion of remote commands.",
			Buckets: []float64{5, 10, 15, 20, 25, 30, 35, 45, 60},
		},
	)
)

func init() {
	Registry.MustRegister(Logins)
	Registry.MustRegister(CoalescedLogins)
	Registry.MustRegister(Commands)
	Registry.MustRegister(TransactionPolls)
	Registry.MustRegister(TransactionOutcomes)
	Registry.MustRegister(TransactionLatency)
}

// Handler serves the Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
