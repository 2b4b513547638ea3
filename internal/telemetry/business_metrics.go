package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for the order pipeline.
type BusinessMetrics struct {
	// Cart
	CartItemsAdded *prometheus.CounterVec
	CartsAbandoned prometheus.Counter

	// Checkout funnel
	CheckoutStarted   *prometheus.CounterVec
	CheckoutCompleted *prometheus.CounterVec
	CheckoutFailed    *prometheus.CounterVec
	StockRejections   *prometheus.CounterVec

	// Promo codes
	PromoApplied  *prometheus.CounterVec
	PromoRejected *prometheus.CounterVec

	// Orders
	OrdersCreated    *prometheus.CounterVec
	OrderValue       *prometheus.HistogramVec
	OrderItemCount   prometheus.Histogram
	OrderTransitions *prometheus.CounterVec
	OrdersCancelled  *prometheus.CounterVec
	PaymentRetries   *prometheus.CounterVec
	OrderFulfillment prometheus.Histogram

	// Payments
	PaymentInitialized *prometheus.CounterVec
	PaymentSucceeded   *prometheus.CounterVec
	PaymentFailed      *prometheus.CounterVec
	PaymentVerifyDup   *prometheus.CounterVec

	// Revenue tracking
	RevenueCollected *prometheus.CounterVec
	RefundsIssued    *prometheus.CounterVec
	RefundAmount     *prometheus.CounterVec

	// Webhooks
	WebhookReceived *prometheus.CounterVec
	WebhookFailed   *prometheus.CounterVec
	WebhookLatency  *prometheus.HistogramVec

	// Background jobs
	JobsEnqueued  *prometheus.CounterVec
	JobsProcessed *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec

	// Notifications
	EventsPublished *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec

	// External API performance
	GatewayAPILatency *prometheus.HistogramVec
}

// NewBusinessMetrics creates the business metrics and registers them with reg.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if namespace == "" {
		namespace = "mercato"
	}
	factory := promauto.With(reg)

	subsystem := "business"

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	// Order values are in major currency units.
	valueBuckets := []float64{1000, 5000, 10000, 25000, 50000, 100000, 250000, 500000, 1000000}

	m := &BusinessMetrics{
		CartItemsAdded: counter("cart_items_added_total", "Items added to carts", "kind"), // kind: product, variant
		CartsAbandoned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "carts_abandoned_total",
			Help:      "Carts marked abandoned by the cleanup job",
		}),

		CheckoutStarted:   counter("checkout_started_total", "Checkout attempts", "gateway"),
		CheckoutCompleted: counter("checkout_completed_total", "Checkouts that created an order", "gateway"),
		CheckoutFailed:    counter("checkout_failed_total", "Checkouts rejected before an order existed", "reason"), // reason: empty_cart, insufficient_stock, invalid_promo, gateway, internal
		StockRejections:   counter("stock_rejections_total", "Reservations refused for lack of stock", "stage"),     // stage: precheck, reserve

		PromoApplied:  counter("promo_applied_total", "Orders placed with a promo code", "discount_type"),
		PromoRejected: counter("promo_rejected_total", "Promo code validations that failed", "reason"),

		OrdersCreated: counter("orders_created_total", "Orders created", "currency"),
		OrderValue: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "order_value",
			Help:      "Order total in major currency units",
			Buckets:   valueBuckets,
		}, []string{"currency"}),
		OrderItemCount: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "order_item_count",
			Help:      "Number of lines per order",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
		}),
		OrderTransitions: counter("order_transitions_total", "Order status transitions", "from", "to"),
		OrdersCancelled:  counter("orders_cancelled_total", "Orders cancelled", "actor"), // actor: customer, admin
		PaymentRetries:   counter("payment_retries_total", "Payment re-initializations for pending orders", "gateway"),
		OrderFulfillment: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "order_fulfillment_hours",
			Help:      "Hours from confirmation to shipment",
			Buckets:   []float64{1, 6, 12, 24, 48, 72, 120, 168},
		}),

		PaymentInitialized: counter("payment_initialized_total", "Payments handed to a gateway", "gateway"),
		PaymentSucceeded:   counter("payment_succeeded_total", "Payments verified as successful", "gateway"),
		PaymentFailed:      counter("payment_failed_total", "Payments verified as failed", "gateway", "reason"), // reason: declined, amount_mismatch
		PaymentVerifyDup:   counter("payment_verify_duplicate_total", "Verifications answered from a final payment", "gateway"),

		RevenueCollected: counter("revenue_collected_minor_total", "Successful payment amounts in minor units", "currency"),
		RefundsIssued:    counter("refunds_issued_total", "Refunds processed", "gateway"),
		RefundAmount:     counter("refund_amount_minor_total", "Refunded amounts in minor units", "currency"),

		WebhookReceived: counter("webhook_received_total", "Webhooks received", "gateway", "event_type"),
		WebhookFailed:   counter("webhook_failed_total", "Webhooks rejected or failed", "gateway", "reason"),
		WebhookLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "webhook_duration_seconds",
			Help:      "Webhook handling duration",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"gateway"}),

		JobsEnqueued:  counter("jobs_enqueued_total", "Background jobs enqueued", "job_type"),
		JobsProcessed: counter("jobs_processed_total", "Background jobs completed", "job_type"),
		JobsFailed:    counter("jobs_failed_total", "Background job attempts that failed", "job_type"),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "job_duration_seconds",
			Help:      "Background job processing duration",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job_type"}),

		EventsPublished: counter("events_published_total", "Order events delivered to a sink", "sink", "event"),
		EventsDropped:   counter("events_dropped_total", "Order events a sink failed to accept", "sink", "event"),

		GatewayAPILatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "gateway_api_duration_seconds",
			Help:      "Payment gateway call duration",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"gateway", "operation"}), // operation: initialize, verify, refund
	}

	return m
}

// Global instance for easy access from handlers
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace, prometheus.DefaultRegisterer)
	return Business
}
