package loginflow

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/tendant/simple-auth/pkg/errors"
)

var flowOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "auth",
	Name:      "flow_outcomes_total",
	Help:      "Outcomes of auth flow operations.",
}, []string{"operation", "outcome"})

func recordOutcome(operation string, err error, success string) {
	outcome := success
	if err != nil {
		outcome = strings.ToLower(string(apperrors.GetCode(err)))
	}
	flowOutcomes.WithLabelValues(operation, outcome).Inc()
}
