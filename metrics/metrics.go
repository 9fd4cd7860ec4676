package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ReviewsTotal counts completed reviews by outcome.
	ReviewsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "everforest",
		Subsystem: "review",
		Name:      "reviews_total",
		Help:      "Total number of event reviews processed, labeled by outcome.",
	}, []string{"outcome"})

	// ReviewDurationSeconds is end-to-end time per review.
	ReviewDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "everforest",
		Subsystem: "review",
		Name:      "review_duration_seconds",
		Help:      "End-to-end time to run one event review including all external calls.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})

	// CheckDurationSeconds is per-check latency.
	CheckDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "everforest",
		Subsystem: "review",
		Name:      "check_duration_seconds",
		Help:      "Time spent in each content check, labeled by check name.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60},
	}, []string{"check"})

	// DegradedChecksTotal counts checks that could not be completed.
	DegradedChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "everforest",
		Subsystem: "review",
		Name:      "degraded_checks_total",
		Help:      "Total number of checks that returned a degraded verdict, labeled by check name.",
	}, []string{"check"})

	// ImageScansTotal counts per-image classification calls by result.
	ImageScansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "everforest",
		Subsystem: "review",
		Name:      "image_scans_total",
		Help:      "Total number of per-image classification calls, labeled by result.",
	}, []string{"result"})

	// NotificationErrorsTotal counts failed host notification sends.
	NotificationErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "everforest",
		Subsystem: "review",
		Name:      "notification_errors_total",
		Help:      "Total number of host notification sends that failed.",
	})

	// RabbitMQConnected is 1 when the subscriber considers itself connected.
	RabbitMQConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "everforest",
		Subsystem: "review",
		Name:      "rabbitmq_connected",
		Help:      "Whether the review RabbitMQ subscriber is currently connected (best-effort).",
	})

	// RabbitMQLastDeliverySeconds is a unix timestamp of the last observed delivery.
	RabbitMQLastDeliverySeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "everforest",
		Subsystem: "review",
		Name:      "rabbitmq_last_delivery_timestamp_seconds",
		Help:      "Unix timestamp (seconds) of the last RabbitMQ delivery observed by the subscriber (best-effort).",
	})

	// RabbitMQLastConnectSeconds is a unix timestamp of the last successful (re)connect.
	RabbitMQLastConnectSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "everforest",
		Subsystem: "review",
		Name:      "rabbitmq_last_connect_timestamp_seconds",
		Help:      "Unix timestamp (seconds) of the last successful RabbitMQ (re)connect.",
	})

	// WorkerInFlight is the current number of deliveries being processed.
	WorkerInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "everforest",
		Subsystem: "review",
		Name:      "rabbitmq_worker_in_flight",
		Help:      "Current number of RabbitMQ deliveries being processed by worker goroutines.",
	})

	// ProcessedTotal counts processed deliveries by outcome.
	ProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "everforest",
		Subsystem: "review",
		Name:      "rabbitmq_processed_total",
		Help:      "Total number of RabbitMQ deliveries processed by the review subscriber, labeled by result.",
	}, []string{"result"})

	// ProcessingDurationSeconds is per-delivery processing time by result.
	ProcessingDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "everforest",
		Subsystem: "review",
		Name:      "rabbitmq_processing_duration_seconds",
		Help:      "Time spent processing one RabbitMQ delivery, labeled by result.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"result"})

	// RetryPublishErrorsTotal counts failed publishes to the retry exchange.
	RetryPublishErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "everforest",
		Subsystem: "review",
		Name:      "rabbitmq_retry_publish_errors_total",
		Help:      "Total number of failed publishes to the retry exchange.",
	})

	// AckErrorsTotal counts failed acks.
	AckErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "everforest",
		Subsystem: "review",
		Name:      "rabbitmq_ack_errors_total",
		Help:      "Total number of RabbitMQ ack errors.",
	})

	// NackErrorsTotal counts failed nacks.
	NackErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "everforest",
		Subsystem: "review",
		Name:      "rabbitmq_nack_errors_total",
		Help:      "Total number of RabbitMQ nack errors.",
	})
)

// Register registers review metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ReviewsTotal,
			ReviewDurationSeconds,
			CheckDurationSeconds,
			DegradedChecksTotal,
			ImageScansTotal,
			NotificationErrorsTotal,
			RabbitMQConnected,
			RabbitMQLastDeliverySeconds,
			RabbitMQLastConnectSeconds,
			WorkerInFlight,
			ProcessedTotal,
			ProcessingDurationSeconds,
			RetryPublishErrorsTotal,
			AckErrorsTotal,
			NackErrorsTotal,
		)
	})
}
