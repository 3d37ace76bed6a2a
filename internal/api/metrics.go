package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcome labels for the loginsTotal counter. Rejection kinds are
// distinguished here and in logs only — the HTTP response is identical for
// all of them.
const (
	resultSuccess          = "success"
	resultProviderError    = "provider_error"
	resultEmailNotVerified = "email_not_verified"
	resultEmailConflict    = "email_conflict"
	resultStateMismatch    = "state_mismatch"
)

var loginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sitegate_logins_total",
		Help: "Completed login callbacks by outcome.",
	},
	[]string{"result"},
)
