package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "openzaak", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "openzaak", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "openzaak", Name: "notifications_sent_total", Help: "Notifications delivered, by kanaal."},
		[]string{"kanaal"},
	)
	NotificationsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "openzaak", Name: "notifications_failed_total", Help: "Notifications that could not be delivered, by kanaal."},
		[]string{"kanaal"},
	)
	RemoteFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "openzaak", Name: "remote_fetches_total", Help: "Remote resource fetches by result (ok, cached, error)."},
		[]string{"result"},
	)
	LooseFKRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "openzaak", Name: "loose_fk_rejected_total", Help: "Rejected reference values by error code."},
		[]string{"code"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(NotificationsSent)
	reg.MustRegister(NotificationsFailed)
	reg.MustRegister(RemoteFetches)
	reg.MustRegister(LooseFKRejected)
}
