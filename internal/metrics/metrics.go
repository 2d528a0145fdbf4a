// Package metrics registers the service's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts handled HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "optionbooking_http_requests_total",
		Help: "Handled HTTP requests.",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration observes request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "optionbooking_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// AnswersCreatedTotal counts created answers by resulting status.
	AnswersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "optionbooking_answers_created_total",
		Help: "Answers created, by resulting status.",
	}, []string{"status"})

	// AnswersCancelledTotal counts cancelled answers.
	AnswersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "optionbooking_answers_cancelled_total",
		Help: "Answers cancelled or evicted.",
	})

	// SeatsPromotedTotal counts waitlist promotions.
	SeatsPromotedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "optionbooking_seats_promoted_total",
		Help: "Waiting answers promoted into freed seats.",
	})
)
