package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		roleGrantsTotal,
		roleRevocationsTotal,
	)
}

var (
	roleGrantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_role_grants_total",
			Help: "Role grants by kind (permanent/timed).",
		},
		[]string{"kind"},
	)

	roleRevocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_role_revocations_total",
			Help: "Expired role grants processed by the expiry worker, by result.",
		},
		[]string{"result"}, // revoked|error
	)
)

func IncRoleGrant(timed bool) {
	kind := "permanent"
	if timed {
		kind = "timed"
	}
	roleGrantsTotal.WithLabelValues(kind).Inc()
}

func IncRoleRevocation(result string) {
	roleRevocationsTotal.WithLabelValues(bounded(result, "revoked", "error")).Inc()
}
