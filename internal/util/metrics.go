package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_created_total",
		Help: "Total number of checkouts that opened a payment intent",
	})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of failed checkout attempts",
	}, []string{"reason"})

	OrdersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_completed_total",
		Help: "Total number of orders confirmed by the payment processor",
	})

	OrdersFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of orders whose payment failed",
	})

	SubscriptionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subscriptions_created_total",
		Help: "Total number of subscription initiations",
	})

	SubscriptionsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_failed_total",
		Help: "Total number of failed subscription initiations",
	}, []string{"reason"})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Total number of processor webhook events by type and outcome",
	}, []string{"type", "outcome"})

	WebhookSignatureFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_signature_failures_total",
		Help: "Total number of webhook deliveries rejected for a bad signature",
	})

	DownloadsServedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "downloads_served_total",
		Help: "Total number of download listings served for completed orders",
	})

	DownloadsRefusedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "downloads_refused_total",
		Help: "Total number of refused download requests",
	}, []string{"reason"})

	PaymentIntentLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_intent_latency_seconds",
		Help:    "Latency of remote payment intent creation",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
