package email

// EmailTemplate defines the interface for email templates
type EmailTemplate interface {
	Subject() string
	TemplateName() string
}

// Notification kinds. They match the order event names so a queued job can
// be rendered without translation.
const (
	KindOrderPlaced        = "order_placed"
	KindPaymentConfirmed   = "payment_confirmed"
	KindPaymentFailed      = "payment_failed"
	KindOrderStatusUpdated = "order_status_updated"
	KindOrderShipped       = "order_shipped"
	KindOrderCancelled     = "order_cancelled"
	KindOrderRefunded      = "order_refunded"
)

var templateNames = map[string]string{
	KindOrderPlaced:        "order_placed.html",
	KindPaymentConfirmed:   "payment_confirmed.html",
	KindPaymentFailed:      "payment_failed.html",
	KindOrderStatusUpdated: "order_status_updated.html",
	KindOrderShipped:       "order_shipped.html",
	KindOrderCancelled:     "order_cancelled.html",
	KindOrderRefunded:      "order_refunded.html",
}

// OrderNotificationEmail is the data behind every order lifecycle email.
type OrderNotificationEmail struct {
	Kind           string
	Email          string
	CustomerName   string
	OrderNumber    string
	Status         string
	PaymentStatus  string
	TotalCents     int64
	Currency       string
	Reason         string
	TrackingNumber string
	Carrier        string
}

func (e OrderNotificationEmail) Subject() string {
	switch e.Kind {
	case KindOrderPlaced:
		return "We received your order - " + e.OrderNumber
	case KindPaymentConfirmed:
		return "Payment confirmed - " + e.OrderNumber
	case KindPaymentFailed:
		return "Payment failed - " + e.OrderNumber
	case KindOrderShipped:
		return "Your order has shipped - " + e.OrderNumber
	case KindOrderCancelled:
		return "Order cancelled - " + e.OrderNumber
	case KindOrderRefunded:
		return "Refund processed - " + e.OrderNumber
	default:
		return "Order update - " + e.OrderNumber
	}
}

func (e OrderNotificationEmail) TemplateName() string {
	return templateNames[e.Kind]
}
