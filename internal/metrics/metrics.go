package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Accrual results
const (
	AccrualCredited = "credited"
	AccrualSkipped  = "skipped"
	AccrualFailed   = "failed"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPResponseTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ReferralAccruals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_referral_accruals_total",
			Help: "Referral accrual attempts by result",
		},
		[]string{"result"},
	)

	ReferralCredited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_referral_credited_amount_total",
			Help: "Sum of referral commissions credited",
		},
	)

	PayoutTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_payout_requests_total",
			Help: "Payout requests entering each status",
		},
		[]string{"status"},
	)

	PayoutPaidOut = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_payout_paid_amount_total",
			Help: "Sum of completed payout amounts",
		},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_notification_failures_total",
			Help: "Best-effort notification sends that failed",
		},
		[]string{"channel"},
	)
)
