package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/repository"
	"github.com/dukerupert/mercato/internal/telemetry"
)

const (
	defaultOrderListLimit = 20
	maxOrderListLimit     = 100
)

// loadAccessibleOrder loads an order the actor may see. Orders of other
// customers are reported as not found.
func loadAccessibleOrder(ctx context.Context, q repository.Querier, actor domain.Actor, orderNumber string) (repository.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return repository.Order{}, ErrOrderNotFound
	}

	order, err := q.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		if repository.IsNotFound(err) {
			return order, ErrOrderNotFound
		}
		return order, fmt.Errorf("failed to get order: %w", err)
	}
	if !actor.CanAccess(order.CustomerID) {
		return repository.Order{}, ErrOrderNotFound
	}
	return order, nil
}

// loadOrderDetail aggregates an order with its items, payment and
// decoded addresses.
func loadOrderDetail(ctx context.Context, q repository.Querier, order repository.Order) (*domain.OrderDetail, error) {
	items, err := q.ListOrderItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}

	detail := &domain.OrderDetail{
		Order: order,
		Items: items,
	}

	payment, err := q.GetPaymentByOrderID(ctx, order.ID)
	switch {
	case err == nil:
		detail.Payment = &payment
	case !repository.IsNotFound(err):
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	if detail.ShippingAddress, err = domain.UnmarshalAddress(order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to decode shipping address: %w", err)
	}
	if detail.BillingAddress, err = domain.UnmarshalAddress(order.BillingAddress); err != nil {
		return nil, fmt.Errorf("failed to decode billing address: %w", err)
	}
	return detail, nil
}

// errPaymentSettled stops a plain cancellation of an order whose payment
// has succeeded; such orders are cancelled through a refund.
var errPaymentSettled = errors.New("order payment has settled")

// cancelOrderLocked cancels an order the caller holds the row lock on. It
// releases the stock the order still holds, voids an unfinished payment and
// records the status. It returns errPaymentSettled, changing nothing, when
// the payment has succeeded.
func cancelOrderLocked(ctx context.Context, q repository.Querier, ledger *InventoryLedger, order repository.Order, reason, adminNote string) (repository.Order, error) {
	payment, err := q.GetPaymentByOrderID(ctx, order.ID)
	hasPayment := err == nil
	if err != nil && !repository.IsNotFound(err) {
		return order, fmt.Errorf("failed to get payment: %w", err)
	}
	if hasPayment && domain.PaymentStatus(payment.Status) == domain.PaymentSuccessful {
		return order, errPaymentSettled
	}

	if domain.OrderHoldsStock(order) {
		if err := ledger.ReleaseOrder(ctx, q, order.ID); err != nil {
			return order, err
		}
	}
	if hasPayment {
		if _, err := q.MarkPaymentCancelled(ctx, payment.ID); err != nil {
			return order, fmt.Errorf("failed to cancel payment: %w", err)
		}
	}

	order, err = q.UpdateOrderStatus(ctx, repository.UpdateOrderStatusParams{
		ID:                 order.ID,
		Status:             string(domain.OrderCancelled),
		AdminNote:          optionalText(adminNote),
		CancellationReason: optionalText(reason),
	})
	if err != nil {
		return order, fmt.Errorf("failed to cancel order: %w", err)
	}
	return order, nil
}

// --- Order reads ---

type orderService struct {
	store repository.Querier
}

// NewOrderService creates the read side of the order ledger.
func NewOrderService(store repository.Querier) domain.OrderService {
	return &orderService{store: store}
}

func (s *orderService) GetOrder(ctx context.Context, actor domain.Actor, orderNumber string) (*domain.OrderDetail, error) {
	order, err := loadAccessibleOrder(ctx, s.store, actor, orderNumber)
	if err != nil {
		return nil, err
	}
	return loadOrderDetail(ctx, s.store, order)
}

func (s *orderService) ListOrders(ctx context.Context, actor domain.Actor, params domain.ListOrdersParams) ([]repository.Order, error) {
	if !actor.IsAdmin() {
		if err := requireCustomer(actor); err != nil {
			return nil, err
		}
	}

	arg := repository.ListOrdersParams{
		Limit:  params.Limit,
		Offset: max(params.Offset, 0),
	}
	if arg.Limit <= 0 {
		arg.Limit = defaultOrderListLimit
	}
	arg.Limit = min(arg.Limit, maxOrderListLimit)

	// Admins list every customer's orders.
	if !actor.IsAdmin() {
		arg.CustomerID = pgtype.UUID{Bytes: actor.CustomerID, Valid: true}
	}
	if params.Status != "" {
		status, err := domain.ParseOrderStatus(params.Status)
		if err != nil {
			return nil, err
		}
		arg.Status = pgtype.Text{String: string(status), Valid: true}
	}

	orders, err := s.store.ListOrders(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []repository.Order{}
	}
	return orders, nil
}

func (s *orderService) TrackOrder(ctx context.Context, actor domain.Actor, orderNumber string) (*domain.OrderTracking, error) {
	order, err := loadAccessibleOrder(ctx, s.store, actor, orderNumber)
	if err != nil {
		return nil, err
	}

	tracking := &domain.OrderTracking{
		OrderNumber:       order.OrderNumber,
		Status:            order.Status,
		PaymentStatus:     order.PaymentStatus,
		FulfillmentStatus: order.FulfillmentStatus,
		Timeline:          orderTimeline(order),
	}
	if order.TrackingNumber.Valid {
		tracking.TrackingNumber = order.TrackingNumber.String
	}
	if order.Carrier.Valid {
		tracking.Carrier = order.Carrier.String
	}
	return tracking, nil
}

// orderTimeline lists the milestones the order has reached, oldest first.
func orderTimeline(order repository.Order) []domain.TrackingStep {
	steps := []domain.TrackingStep{{
		Status:    string(domain.OrderPending),
		Label:     "Order placed",
		Timestamp: order.CreatedAt,
	}}

	milestones := []struct {
		status domain.OrderStatus
		label  string
		at     pgtype.Timestamptz
	}{
		{domain.OrderConfirmed, "Payment confirmed", order.ConfirmedAt},
		{domain.OrderShipped, "Shipped", order.ShippedAt},
		{domain.OrderDelivered, "Delivered", order.DeliveredAt},
		{domain.OrderCancelled, "Cancelled", order.CancelledAt},
		{domain.OrderRefunded, "Refunded", order.RefundedAt},
	}
	for _, m := range milestones {
		if m.at.Valid {
			steps = append(steps, domain.TrackingStep{
				Status:    string(m.status),
				Label:     m.label,
				Timestamp: m.at.Time,
			})
		}
	}

	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Timestamp.Before(steps[j].Timestamp)
	})
	return steps
}

// --- Admin order path ---

type adminOrderService struct {
	store    repository.Store
	ledger   *InventoryLedger
	checkout domain.CheckoutService
	notifier domain.Notifier
	logger   *slog.Logger
}

// NewAdminOrderService creates the admin fulfillment path. Refunds are
// delegated to checkout so they share its gateway and release handling.
func NewAdminOrderService(store repository.Store, ledger *InventoryLedger, checkout domain.CheckoutService, notifier domain.Notifier, logger *slog.Logger) domain.AdminOrderService {
	if logger == nil {
		logger = slog.Default()
	}
	if ledger == nil {
		ledger = NewInventoryLedger(logger)
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &adminOrderService{
		store:    store,
		ledger:   ledger,
		checkout: checkout,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *adminOrderService) UpdateStatus(ctx context.Context, actor domain.Actor, orderNumber string, params domain.UpdateStatusParams) (*domain.OrderDetail, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminRequired
	}
	if _, err := domain.ParseOrderStatus(string(params.Status)); err != nil {
		return nil, err
	}

	if params.Status == domain.OrderRefunded {
		reason := params.Reason
		if reason == "" {
			reason = params.AdminNote
		}
		return s.checkout.ProcessRefund(ctx, actor, orderNumber, domain.RefundParams{Reason: reason})
	}

	order, err := loadAccessibleOrder(ctx, s.store, actor, orderNumber)
	if err != nil {
		return nil, err
	}

	var (
		from   string
		detail *domain.OrderDetail
	)
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		order, err = q.GetOrderForUpdate(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}
		from = order.Status
		if !domain.OrderStatus(order.Status).CanTransitionTo(params.Status) {
			return ErrInvalidStatusTransition
		}

		if params.Status == domain.OrderCancelled {
			order, err = cancelOrderLocked(ctx, q, s.ledger, order, params.Reason, params.AdminNote)
		} else {
			order, err = q.UpdateOrderStatus(ctx, repository.UpdateOrderStatusParams{
				ID:        order.ID,
				Status:    string(params.Status),
				AdminNote: optionalText(params.AdminNote),
			})
		}
		if err != nil {
			return err
		}

		detail, err = loadOrderDetail(ctx, q, order)
		return err
	})
	if errors.Is(err, errPaymentSettled) {
		return s.checkout.ProcessRefund(ctx, actor, orderNumber, domain.RefundParams{
			Reason:    params.Reason,
			AdminNote: params.AdminNote,
			Cancel:    true,
		})
	}
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order status updated",
		"order_number", order.OrderNumber,
		"from", from,
		"to", order.Status,
		"admin_id", actor.CustomerID,
	)
	recordTransition(ctx, from, order)

	eventType := domain.EventOrderStatusUpdated
	switch params.Status {
	case domain.OrderCancelled:
		eventType = domain.EventOrderCancelled
		if telemetry.Business != nil {
			telemetry.Business.OrdersCancelled.WithLabelValues("admin").Inc()
		}
	case domain.OrderShipped:
		eventType = domain.EventOrderShipped
	}
	s.notifier.Notify(ctx, newOrderEvent(eventType, order))
	return detail, nil
}

func (s *adminOrderService) UpdateShipping(ctx context.Context, actor domain.Actor, orderNumber string, params domain.UpdateShippingParams) (*domain.OrderDetail, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminRequired
	}
	params.TrackingNumber = strings.TrimSpace(params.TrackingNumber)
	params.Carrier = strings.TrimSpace(params.Carrier)
	if params.TrackingNumber == "" {
		return nil, domain.NewValidationError("", "tracking_number", "Tracking number is required")
	}

	order, err := loadAccessibleOrder(ctx, s.store, actor, orderNumber)
	if err != nil {
		return nil, err
	}

	var (
		from   string
		detail *domain.OrderDetail
	)
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		order, err = q.GetOrderForUpdate(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}
		from = order.Status

		status := domain.OrderStatus(order.Status)
		if status != domain.OrderShipped && !status.CanTransitionTo(domain.OrderShipped) {
			return ErrInvalidStatusTransition
		}

		order, err = q.UpdateOrderShipping(ctx, repository.UpdateOrderShippingParams{
			ID:             order.ID,
			TrackingNumber: optionalText(params.TrackingNumber),
			Carrier:        optionalText(params.Carrier),
		})
		if err != nil {
			return fmt.Errorf("failed to update shipping: %w", err)
		}

		if status != domain.OrderShipped {
			order, err = q.UpdateOrderStatus(ctx, repository.UpdateOrderStatusParams{
				ID:     order.ID,
				Status: string(domain.OrderShipped),
			})
			if err != nil {
				return fmt.Errorf("failed to mark order shipped: %w", err)
			}
		}

		detail, err = loadOrderDetail(ctx, q, order)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order shipping updated",
		"order_number", order.OrderNumber,
		"tracking_number", params.TrackingNumber,
		"carrier", params.Carrier,
	)
	if from != order.Status {
		recordTransition(ctx, from, order)
	}
	s.notifier.Notify(ctx, newOrderEvent(domain.EventOrderShipped, order))
	return detail, nil
}

func (s *adminOrderService) Refund(ctx context.Context, actor domain.Actor, orderNumber string, params domain.RefundParams) (*domain.OrderDetail, error) {
	return s.checkout.ProcessRefund(ctx, actor, orderNumber, params)
}

func recordTransition(ctx context.Context, from string, order repository.Order) {
	telemetry.AddBreadcrumb(ctx, "order", "status "+from+" -> "+order.Status, map[string]interface{}{
		"order_number": order.OrderNumber,
	})
	if telemetry.Business == nil {
		return
	}
	telemetry.Business.OrderTransitions.WithLabelValues(from, order.Status).Inc()
	if domain.OrderStatus(order.Status) == domain.OrderShipped && order.ConfirmedAt.Valid && order.ShippedAt.Valid {
		telemetry.Business.OrderFulfillment.Observe(order.ShippedAt.Time.Sub(order.ConfirmedAt.Time).Hours())
	}
}
