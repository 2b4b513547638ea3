package api

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/repository"
)

var errNotStubbed = errors.New("not stubbed")

type fakeCarts struct {
	addParams  domain.AddCartItemParams
	updatedQty int32
	itemID     uuid.UUID
	cleared    bool
	err        error
}

func (f *fakeCarts) view() *domain.CartView {
	return &domain.CartView{ID: uuid.New(), Status: string(domain.CartActive), Currency: "NGN"}
}

func (f *fakeCarts) GetCart(ctx context.Context, actor domain.Actor) (*domain.CartView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.view(), nil
}

func (f *fakeCarts) AddItem(ctx context.Context, actor domain.Actor, params domain.AddCartItemParams) (*domain.CartView, error) {
	f.addParams = params
	if f.err != nil {
		return nil, f.err
	}
	return f.view(), nil
}

func (f *fakeCarts) UpdateItem(ctx context.Context, actor domain.Actor, itemID uuid.UUID, quantity int32) (*domain.CartView, error) {
	f.itemID, f.updatedQty = itemID, quantity
	if f.err != nil {
		return nil, f.err
	}
	return f.view(), nil
}

func (f *fakeCarts) RemoveItem(ctx context.Context, actor domain.Actor, itemID uuid.UUID) (*domain.CartView, error) {
	f.itemID = itemID
	if f.err != nil {
		return nil, f.err
	}
	return f.view(), nil
}

func (f *fakeCarts) Clear(ctx context.Context, actor domain.Actor) error {
	f.cleared = true
	return f.err
}

func (f *fakeCarts) MarkAbandoned(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, errNotStubbed
}

type fakeCheckout struct {
	previewParams  domain.PreviewParams
	checkoutParams domain.CheckoutParams
	verified       []string
	resolved       string
	cancelReason   string
	err            error
}

func (f *fakeCheckout) Preview(ctx context.Context, actor domain.Actor, params domain.PreviewParams) (*domain.CheckoutPreview, error) {
	f.previewParams = params
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CheckoutPreview{Totals: domain.NewOrderTotals(2000, 0, 0, 0, "NGN")}, nil
}

func (f *fakeCheckout) ProcessCheckout(ctx context.Context, actor domain.Actor, params domain.CheckoutParams) (*domain.CheckoutResult, error) {
	f.checkoutParams = params
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CheckoutResult{
		Order:   repository.Order{OrderNumber: "ORD-TEST", Status: string(domain.OrderPending)},
		Payment: domain.PaymentInit{Reference: "TXN-1", Gateway: "mock", Initialized: true},
	}, nil
}

func (f *fakeCheckout) VerifyPayment(ctx context.Context, reference string) (*domain.PaymentOutcome, error) {
	f.verified = append(f.verified, reference)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.PaymentOutcome{Reference: reference, OrderNumber: "ORD-TEST", Successful: true}, nil
}

func (f *fakeCheckout) ResolveReference(ctx context.Context, gateway, providerReference string) (string, error) {
	if f.resolved == "" {
		return "", domain.Errorf(domain.ENOTFOUND, "", "No payment found")
	}
	return f.resolved, nil
}

func (f *fakeCheckout) RetryPayment(ctx context.Context, actor domain.Actor, orderNumber string) (*domain.PaymentInit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.PaymentInit{Reference: "TXN-1", AuthorizationURL: "https://pay.example/retry", Initialized: true}, nil
}

func (f *fakeCheckout) CancelOrder(ctx context.Context, actor domain.Actor, orderNumber, reason string) (*domain.OrderDetail, error) {
	f.cancelReason = reason
	if f.err != nil {
		return nil, f.err
	}
	return &domain.OrderDetail{Order: repository.Order{OrderNumber: orderNumber, Status: string(domain.OrderCancelled)}}, nil
}

func (f *fakeCheckout) ProcessRefund(ctx context.Context, actor domain.Actor, orderNumber string, params domain.RefundParams) (*domain.OrderDetail, error) {
	return nil, errNotStubbed
}

type fakeOrders struct {
	listParams domain.ListOrdersParams
	err        error
}

func (f *fakeOrders) GetOrder(ctx context.Context, actor domain.Actor, orderNumber string) (*domain.OrderDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.OrderDetail{Order: repository.Order{OrderNumber: orderNumber}}, nil
}

func (f *fakeOrders) ListOrders(ctx context.Context, actor domain.Actor, params domain.ListOrdersParams) ([]repository.Order, error) {
	f.listParams = params
	if f.err != nil {
		return nil, f.err
	}
	return []repository.Order{{OrderNumber: "ORD-A"}, {OrderNumber: "ORD-B"}}, nil
}

func (f *fakeOrders) TrackOrder(ctx context.Context, actor domain.Actor, orderNumber string) (*domain.OrderTracking, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.OrderTracking{OrderNumber: orderNumber, Status: string(domain.OrderShipped)}, nil
}

type fakeAdmin struct {
	statusParams   domain.UpdateStatusParams
	shippingParams domain.UpdateShippingParams
	refundParams   domain.RefundParams
	err            error
}

func (f *fakeAdmin) detail(orderNumber string) *domain.OrderDetail {
	return &domain.OrderDetail{Order: repository.Order{OrderNumber: orderNumber}}
}

func (f *fakeAdmin) UpdateStatus(ctx context.Context, actor domain.Actor, orderNumber string, params domain.UpdateStatusParams) (*domain.OrderDetail, error) {
	f.statusParams = params
	if f.err != nil {
		return nil, f.err
	}
	return f.detail(orderNumber), nil
}

func (f *fakeAdmin) UpdateShipping(ctx context.Context, actor domain.Actor, orderNumber string, params domain.UpdateShippingParams) (*domain.OrderDetail, error) {
	f.shippingParams = params
	if f.err != nil {
		return nil, f.err
	}
	return f.detail(orderNumber), nil
}

func (f *fakeAdmin) Refund(ctx context.Context, actor domain.Actor, orderNumber string, params domain.RefundParams) (*domain.OrderDetail, error) {
	f.refundParams = params
	if f.err != nil {
		return nil, f.err
	}
	return f.detail(orderNumber), nil
}
