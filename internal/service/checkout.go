package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/mercato/internal/billing"
	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/lock"
	"github.com/dukerupert/mercato/internal/repository"
	"github.com/dukerupert/mercato/internal/telemetry"
)

const defaultPaymentMethod = "card"

// CheckoutDeps are the collaborators of the checkout orchestrator.
type CheckoutDeps struct {
	Store    repository.Store
	Gateways *billing.Registry
	Ledger   *InventoryLedger
	Promos   *PromoEngine
	Pricer   *Pricer
	Locker   lock.Locker
	Notifier domain.Notifier
	Logger   *slog.Logger

	// CallbackURL is where gateways send the shopper back after payment
	// when a checkout does not name its own.
	CallbackURL string
}

type checkoutService struct {
	store       repository.Store
	gateways    *billing.Registry
	ledger      *InventoryLedger
	promos      *PromoEngine
	pricer      *Pricer
	locker      lock.Locker
	notifier    domain.Notifier
	logger      *slog.Logger
	callbackURL string
	now         func() time.Time
}

// NewCheckoutService creates the checkout orchestrator.
func NewCheckoutService(deps CheckoutDeps) domain.CheckoutService {
	return newCheckoutService(deps)
}

func newCheckoutService(deps CheckoutDeps) *checkoutService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &checkoutService{
		store:       deps.Store,
		gateways:    deps.Gateways,
		ledger:      deps.Ledger,
		promos:      deps.Promos,
		pricer:      deps.Pricer,
		locker:      deps.Locker,
		notifier:    deps.Notifier,
		logger:      logger,
		callbackURL: deps.CallbackURL,
		now:         time.Now,
	}
	if s.ledger == nil {
		s.ledger = NewInventoryLedger(logger)
	}
	if s.promos == nil {
		s.promos = NewPromoEngine(logger)
	}
	if s.pricer == nil {
		s.pricer = NewPricer(nil, nil, "")
	}
	if s.locker == nil {
		s.locker = lock.NewLocalLocker(lock.Options{})
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	return s
}

// pricedCart is the promo outcome and totals of a set of cart lines.
type pricedCart struct {
	result *domain.PromoResult
	promo  *domain.PromoCode
	totals domain.OrderTotals
}

// priceCart validates the promo code against lines and prices them for
// dest. It never writes.
func (s *checkoutService) priceCart(ctx context.Context, q repository.Querier, customerID uuid.UUID, lines []domain.CartLine, code string, dest *domain.Address) (*pricedCart, error) {
	pc := &pricedCart{}

	var discount int64
	if NormalizePromoCode(code) != "" {
		result, promo, err := s.promos.Validate(ctx, q, code, promoContext(customerID, lines, s.pricer.Currency()))
		if err != nil {
			return nil, err
		}
		pc.result = result
		pc.promo = promo
		if result.Valid {
			discount = result.DiscountAmount
		}
	}

	totals, err := s.pricer.Totals(ctx, lines, discount, dest)
	if err != nil {
		return nil, err
	}
	pc.totals = totals
	return pc, nil
}

func promoContext(customerID uuid.UUID, lines []domain.CartLine, currency string) domain.PromoContext {
	pc := domain.PromoContext{
		CustomerID:  customerID,
		OrderAmount: Subtotal(lines),
		Currency:    currency,
	}
	for _, line := range lines {
		pc.ProductIDs = append(pc.ProductIDs, line.ProductID)
		if line.CategoryID.Valid {
			pc.CategoryIDs = append(pc.CategoryIDs, uuid.UUID(line.CategoryID.Bytes))
		}
	}
	return pc
}

func (s *checkoutService) Preview(ctx context.Context, actor domain.Actor, params domain.PreviewParams) (*domain.CheckoutPreview, error) {
	if err := requireCustomer(actor); err != nil {
		return nil, err
	}

	cart, err := s.store.GetActiveCartByCustomer(ctx, actor.CustomerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrEmptyCart
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	lines, err := loadCartLines(ctx, s.store, cart.ID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	priced, err := s.priceCart(ctx, s.store, actor.CustomerID, lines, params.PromoCode, params.ShippingAddress)
	if err != nil {
		return nil, err
	}

	return &domain.CheckoutPreview{
		Items:  lines,
		Totals: priced.totals,
		Promo:  priced.result,
	}, nil
}

func (s *checkoutService) ProcessCheckout(ctx context.Context, actor domain.Actor, params domain.CheckoutParams) (*domain.CheckoutResult, error) {
	if err := requireCustomer(actor); err != nil {
		return nil, err
	}
	if params.ShippingAddress.IsZero() {
		return nil, ErrMissingShippingAddress
	}

	gateway, err := s.gateways.Resolve(params.Gateway)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGateway, params.Gateway)
	}
	if telemetry.Business != nil {
		telemetry.Business.CheckoutStarted.WithLabelValues(gateway.Name()).Inc()
	}

	customer, err := s.store.GetCustomer(ctx, actor.CustomerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NotFound("", "Customer", actor.CustomerID.String())
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	shippingJSON, err := domain.MarshalAddress(params.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to encode shipping address: %w", err)
	}
	billingAddress := params.ShippingAddress
	if params.BillingAddress != nil && !params.BillingAddress.IsZero() {
		billingAddress = *params.BillingAddress
	}
	billingJSON, err := domain.MarshalAddress(billingAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to encode billing address: %w", err)
	}

	method := params.PaymentMethod
	if method == "" {
		method = defaultPaymentMethod
	}

	var (
		order   repository.Order
		items   []repository.OrderItem
		payment repository.Payment
		priced  *pricedCart
	)
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		cart, err := q.GetActiveCartByCustomerForUpdate(ctx, actor.CustomerID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrEmptyCart
			}
			return fmt.Errorf("failed to lock cart: %w", err)
		}
		cartItems, err := q.ListCartItems(ctx, cart.ID)
		if err != nil {
			return fmt.Errorf("failed to list cart items: %w", err)
		}
		if len(cartItems) == 0 {
			return ErrEmptyCart
		}

		lines := make([]domain.CartLine, 0, len(cartItems))
		stock := make([]StockLine, 0, len(cartItems))
		for _, item := range cartItems {
			line := toCartLine(item)
			lines = append(lines, line)
			stock = append(stock, StockLine{Unit: line.Unit(), Name: line.Name, Quantity: line.Quantity})

			ok, err := s.ledger.IsAvailable(ctx, q, line.Unit(), line.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return s.ledger.shortfall(ctx, q, line.Unit(), line.Quantity)
			}
		}

		priced, err = s.priceCart(ctx, q, actor.CustomerID, lines, params.PromoCode, &params.ShippingAddress)
		if err != nil {
			return err
		}
		if priced.result != nil && !priced.result.Valid {
			return &InvalidPromoCodeError{Code: priced.result.Code, Reason: priced.result.Reason}
		}

		if err := s.ledger.ReserveAll(ctx, q, stock); err != nil {
			return err
		}

		orderParams := repository.CreateOrderParams{
			OrderNumber:     NewOrderNumber(),
			CustomerID:      actor.CustomerID,
			CustomerEmail:   customer.Email,
			Currency:        priced.totals.Currency,
			SubtotalCents:   priced.totals.Subtotal,
			DiscountCents:   priced.totals.Discount,
			ShippingCents:   priced.totals.Shipping,
			TaxCents:        priced.totals.Tax,
			TotalCents:      priced.totals.Total,
			ShippingAddress: shippingJSON,
			BillingAddress:  billingJSON,
			CustomerNote:    optionalText(params.CustomerNote),
		}
		if priced.promo != nil {
			orderParams.PromoCodeID = pgtype.UUID{Bytes: priced.promo.ID, Valid: true}
			orderParams.PromoCode = pgtype.Text{String: priced.promo.Code, Valid: true}
		}
		order, err = q.CreateOrder(ctx, orderParams)
		if err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		items = make([]repository.OrderItem, 0, len(cartItems))
		for i, item := range cartItems {
			line := lines[i]
			name := line.Name
			if line.VariantName != "" {
				name += " (" + line.VariantName + ")"
			}
			orderItem, err := q.CreateOrderItem(ctx, repository.CreateOrderItemParams{
				OrderID:           order.ID,
				ProductID:         item.ProductID,
				VariantID:         item.VariantID,
				CategoryID:        item.CategoryID,
				ProductName:       name,
				Sku:               item.Sku,
				VariantAttributes: item.Attributes,
				UnitPriceCents:    line.UnitPriceCents,
				Quantity:          line.Quantity,
				TotalCents:        line.LineTotalCents,
			})
			if err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
			items = append(items, orderItem)
		}

		payment, err = q.CreatePayment(ctx, repository.CreatePaymentParams{
			OrderID:              order.ID,
			TransactionReference: NewTransactionReference(s.now()),
			Gateway:              gateway.Name(),
			Method:               method,
			AmountCents:          order.TotalCents,
			Currency:             order.Currency,
		})
		if err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}

		if err := q.UpdateCartStatus(ctx, repository.UpdateCartStatusParams{
			ID:     cart.ID,
			Status: string(domain.CartCompleted),
		}); err != nil {
			return fmt.Errorf("failed to retire cart: %w", err)
		}
		if err := q.ClearCartItems(ctx, cart.ID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		s.recordCheckoutFailure(ctx, err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "order created",
		"order_number", order.OrderNumber,
		"customer_id", order.CustomerID,
		"total_cents", order.TotalCents,
		"reference", payment.TransactionReference,
	)
	if telemetry.Business != nil {
		telemetry.Business.OrdersCreated.WithLabelValues(order.Currency).Inc()
		telemetry.Business.OrderValue.WithLabelValues(order.Currency).Observe(domain.MinorToMajor(order.TotalCents).InexactFloat64())
		telemetry.Business.OrderItemCount.Observe(float64(len(items)))
		telemetry.Business.CheckoutCompleted.WithLabelValues(gateway.Name()).Inc()
		if priced.promo != nil {
			telemetry.Business.PromoApplied.WithLabelValues(string(priced.promo.DiscountType)).Inc()
		}
	}

	// The order is durable from here on. A gateway failure leaves it
	// pending for RetryPayment.
	callbackURL := params.CallbackURL
	if callbackURL == "" {
		callbackURL = s.callbackURL
	}
	init := s.initializePayment(ctx, gateway, order, payment, customer, params.ShippingAddress, callbackURL)

	s.notifier.Notify(ctx, newOrderEvent(domain.EventOrderPlaced, order))

	return &domain.CheckoutResult{
		Order:   order,
		Items:   items,
		Payment: init,
	}, nil
}

func (s *checkoutService) recordCheckoutFailure(ctx context.Context, err error) {
	reason := "error"
	var (
		stockErr *InsufficientStockError
		promoErr *InvalidPromoCodeError
	)
	switch {
	case errors.Is(err, ErrEmptyCart):
		reason = "empty_cart"
	case errors.As(err, &stockErr), errors.Is(err, ErrUnitUnavailable):
		reason = "insufficient_stock"
	case errors.As(err, &promoErr):
		reason = "invalid_promo"
	}

	if reason == "error" {
		s.logger.ErrorContext(ctx, "checkout failed", "error", err)
	} else {
		s.logger.InfoContext(ctx, "checkout rejected", "reason", reason, "error", err)
	}

	if telemetry.Business == nil {
		return
	}
	telemetry.Business.CheckoutFailed.WithLabelValues(reason).Inc()
	switch reason {
	case "insufficient_stock":
		telemetry.Business.StockRejections.WithLabelValues("checkout").Inc()
	case "invalid_promo":
		telemetry.Business.PromoRejected.WithLabelValues(promoErr.Reason).Inc()
	}
}

// initializePayment asks the gateway for an authorization and records it.
// Failures are logged; the payment stays uninitialized.
func (s *checkoutService) initializePayment(ctx context.Context, gateway billing.Gateway, order repository.Order, payment repository.Payment, customer repository.Customer, shipTo domain.Address, callbackURL string) domain.PaymentInit {
	init := domain.PaymentInit{
		Reference: payment.TransactionReference,
		Gateway:   gateway.Name(),
	}

	name := shipTo.FullName()
	if name == "" {
		name = joinName(customer.FirstName, customer.LastName)
	}
	phone := shipTo.Phone
	if phone == "" && customer.Phone.Valid {
		phone = customer.Phone.String
	}

	gctx, done := observeGateway(ctx, gateway.Name(), "initialize")
	auth, err := gateway.Initialize(gctx, billing.InitializeParams{
		Reference:     payment.TransactionReference,
		AmountCents:   payment.AmountCents,
		Currency:      payment.Currency,
		CustomerEmail: order.CustomerEmail,
		CustomerName:  name,
		CustomerPhone: phone,
		CallbackURL:   callbackURL,
		Metadata: map[string]string{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
		},
	})
	done(err)
	if err != nil {
		s.logger.ErrorContext(ctx, "payment initialization failed",
			"order_number", order.OrderNumber,
			"reference", payment.TransactionReference,
			"gateway", gateway.Name(),
			"error", err,
		)
		telemetry.CaptureError(err, map[string]interface{}{"gateway": gateway.Name(), "operation": "initialize"})
		if telemetry.Business != nil {
			telemetry.Business.PaymentFailed.WithLabelValues(gateway.Name(), "initialize").Inc()
		}
		return init
	}

	if _, err := s.store.SetPaymentInitialized(ctx, repository.SetPaymentInitializedParams{
		ID:                payment.ID,
		AuthorizationUrl:  optionalText(auth.AuthorizationURL),
		ProviderReference: optionalText(auth.ProviderReference),
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to record payment authorization",
			"reference", payment.TransactionReference,
			"error", err,
		)
	}

	if telemetry.Business != nil {
		telemetry.Business.PaymentInitialized.WithLabelValues(gateway.Name()).Inc()
	}
	init.AuthorizationURL = auth.AuthorizationURL
	init.Initialized = true
	return init
}

func (s *checkoutService) VerifyPayment(ctx context.Context, reference string) (*domain.PaymentOutcome, error) {
	if reference == "" {
		return nil, ErrNoPaymentFound
	}

	release, err := s.locker.Acquire(ctx, paymentLockKey(reference))
	if err != nil {
		return nil, domain.Unavailable(err, "payment.verify", "Payment verification already in progress, please try again")
	}
	defer release()

	payment, err := s.store.GetPaymentByReference(ctx, reference)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNoPaymentFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if isFinalPayment(payment.Status) {
		if telemetry.Business != nil {
			telemetry.Business.PaymentVerifyDup.WithLabelValues(payment.Gateway).Inc()
		}
		return s.cachedOutcome(ctx, payment)
	}

	gateway, err := s.gateways.Get(payment.Gateway)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGateway, payment.Gateway)
	}

	params := billing.VerifyParams{Reference: payment.TransactionReference}
	if payment.ProviderReference.Valid {
		params.ProviderReference = payment.ProviderReference.String
	}
	gctx, done := observeGateway(ctx, gateway.Name(), "verify")
	verification, err := gateway.Verify(gctx, params)
	done(err)
	if err != nil {
		s.logger.WarnContext(ctx, "payment verification unavailable",
			"reference", reference,
			"gateway", gateway.Name(),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrPaymentVerificationFailed, err)
	}

	switch {
	case verification.Status == billing.StatusPending:
		order, err := s.store.GetOrderByID(ctx, payment.OrderID)
		if err != nil {
			return nil, fmt.Errorf("failed to get order: %w", err)
		}
		return outcome(payment, order), nil

	case verification.Succeeded() && amountMatches(verification, payment):
		return s.confirmPayment(ctx, payment, verification)

	default:
		reason := verification.Message
		if verification.Succeeded() {
			reason = fmt.Sprintf("amount mismatch: expected %d %s, got %d %s",
				payment.AmountCents, payment.Currency, verification.AmountCents, verification.Currency)
			telemetry.CaptureMessage(ctx, sentry.LevelWarning, "payment amount mismatch", map[string]interface{}{
				"reference": payment.TransactionReference,
				"gateway":   payment.Gateway,
				"reason":    reason,
			})
		}
		return s.failPayment(ctx, payment, verification, reason)
	}
}

// amountMatches requires the provider to report the charged amount.
// Currency is compared only when the provider reports one.
func amountMatches(v *billing.Verification, p repository.Payment) bool {
	if v.AmountCents != p.AmountCents {
		return false
	}
	return v.Currency == "" || strings.EqualFold(v.Currency, p.Currency)
}

// observeGateway traces a gateway call and records its latency. Call the
// returned function with the call's error.
func observeGateway(ctx context.Context, gateway, op string) (context.Context, func(error)) {
	ctx, finish := telemetry.StartSpan(ctx, "payment."+op, gateway)
	start := time.Now()
	return ctx, func(err error) {
		if telemetry.Business != nil {
			telemetry.Business.GatewayAPILatency.WithLabelValues(gateway, op).Observe(time.Since(start).Seconds())
		}
		finish(err)
	}
}

// paymentLockKey serializes verification and refunds of one payment.
func paymentLockKey(reference string) string {
	return "payment:" + reference
}

func isFinalPayment(status string) bool {
	switch domain.PaymentStatus(status) {
	case domain.PaymentPending, domain.PaymentProcessing:
		return false
	}
	return true
}

func outcome(payment repository.Payment, order repository.Order) *domain.PaymentOutcome {
	return &domain.PaymentOutcome{
		Reference:     payment.TransactionReference,
		OrderNumber:   order.OrderNumber,
		PaymentStatus: payment.Status,
		OrderStatus:   order.Status,
		Successful:    payment.Status == string(domain.PaymentSuccessful),
	}
}

func (s *checkoutService) cachedOutcome(ctx context.Context, payment repository.Payment) (*domain.PaymentOutcome, error) {
	order, err := s.store.GetOrderByID(ctx, payment.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	out := outcome(payment, order)
	out.AlreadyProcessed = true
	return out, nil
}

func (s *checkoutService) confirmPayment(ctx context.Context, payment repository.Payment, v *billing.Verification) (*domain.PaymentOutcome, error) {
	var (
		order     repository.Order
		processed bool
	)
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		current, err := q.GetPaymentByReferenceForUpdate(ctx, payment.TransactionReference)
		if err != nil {
			return fmt.Errorf("failed to lock payment: %w", err)
		}
		if isFinalPayment(current.Status) {
			payment = current
			processed = true
			order, err = q.GetOrderByID(ctx, current.OrderID)
			return err
		}

		payment, err = q.MarkPaymentSuccessful(ctx, repository.MarkPaymentSuccessfulParams{
			ID:               current.ID,
			GatewayReference: optionalText(v.GatewayReference),
			GatewayResponse:  []byte(v.Raw),
			Channel:          optionalText(v.Channel),
			CardType:         optionalText(v.CardType),
			CardLastFour:     optionalText(v.Last4),
			BankName:         optionalText(v.Bank),
		})
		if err != nil {
			return fmt.Errorf("failed to mark payment successful: %w", err)
		}

		order, err = q.GetOrderForUpdate(ctx, payment.OrderID)
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}
		order, err = q.UpdateOrderPaymentStatus(ctx, repository.UpdateOrderPaymentStatusParams{
			ID:            order.ID,
			PaymentStatus: string(domain.PaymentSuccessful),
		})
		if err != nil {
			return fmt.Errorf("failed to update order payment status: %w", err)
		}
		if domain.OrderStatus(order.Status) == domain.OrderPending {
			order, err = q.UpdateOrderStatus(ctx, repository.UpdateOrderStatusParams{
				ID:     order.ID,
				Status: string(domain.OrderConfirmed),
			})
			if err != nil {
				return fmt.Errorf("failed to confirm order: %w", err)
			}
		}

		if _, err := s.promos.CommitUsage(ctx, q, order); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := outcome(payment, order)
	if processed {
		out.AlreadyProcessed = true
		return out, nil
	}

	s.logger.InfoContext(ctx, "payment confirmed",
		"order_number", order.OrderNumber,
		"reference", payment.TransactionReference,
		"gateway", payment.Gateway,
	)
	if telemetry.Business != nil {
		telemetry.Business.PaymentSucceeded.WithLabelValues(payment.Gateway).Inc()
		telemetry.Business.RevenueCollected.WithLabelValues(payment.Currency).Add(float64(payment.AmountCents))
	}
	recordTransition(ctx, string(domain.OrderPending), order)
	s.notifier.Notify(ctx, newOrderEvent(domain.EventPaymentConfirmed, order))
	return out, nil
}

func (s *checkoutService) failPayment(ctx context.Context, payment repository.Payment, v *billing.Verification, reason string) (*domain.PaymentOutcome, error) {
	var (
		order     repository.Order
		processed bool
	)
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		current, err := q.GetPaymentByReferenceForUpdate(ctx, payment.TransactionReference)
		if err != nil {
			return fmt.Errorf("failed to lock payment: %w", err)
		}
		if isFinalPayment(current.Status) {
			payment = current
			processed = true
			order, err = q.GetOrderByID(ctx, current.OrderID)
			return err
		}

		payment, err = q.MarkPaymentFailed(ctx, repository.MarkPaymentFailedParams{
			ID:              current.ID,
			GatewayResponse: []byte(v.Raw),
		})
		if err != nil {
			return fmt.Errorf("failed to mark payment failed: %w", err)
		}

		order, err = q.GetOrderForUpdate(ctx, payment.OrderID)
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}
		held := domain.OrderHoldsStock(order)

		order, err = q.UpdateOrderPaymentStatus(ctx, repository.UpdateOrderPaymentStatusParams{
			ID:            order.ID,
			PaymentStatus: string(domain.PaymentFailed),
		})
		if err != nil {
			return fmt.Errorf("failed to update order payment status: %w", err)
		}

		if held {
			return s.ledger.ReleaseOrder(ctx, q, order.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := outcome(payment, order)
	if processed {
		out.AlreadyProcessed = true
		return out, nil
	}

	s.logger.InfoContext(ctx, "payment failed",
		"order_number", order.OrderNumber,
		"reference", payment.TransactionReference,
		"gateway", payment.Gateway,
		"reason", reason,
	)
	if telemetry.Business != nil {
		telemetry.Business.PaymentFailed.WithLabelValues(payment.Gateway, "declined").Inc()
	}
	event := newOrderEvent(domain.EventPaymentFailed, order)
	event.Reason = reason
	s.notifier.Notify(ctx, event)
	return out, nil
}

func (s *checkoutService) ResolveReference(ctx context.Context, gateway, providerReference string) (string, error) {
	if providerReference == "" {
		return "", ErrNoPaymentFound
	}

	payment, err := s.store.GetPaymentByProviderReference(ctx, repository.GetPaymentByProviderReferenceParams{
		Gateway:   gateway,
		Reference: providerReference,
	})
	if err == nil {
		return payment.TransactionReference, nil
	}
	if !repository.IsNotFound(err) {
		return "", fmt.Errorf("failed to resolve provider reference: %w", err)
	}

	// Some providers echo our own reference back.
	payment, err = s.store.GetPaymentByReference(ctx, providerReference)
	if err != nil {
		if repository.IsNotFound(err) {
			return "", ErrNoPaymentFound
		}
		return "", fmt.Errorf("failed to get payment: %w", err)
	}
	return payment.TransactionReference, nil
}

func (s *checkoutService) RetryPayment(ctx context.Context, actor domain.Actor, orderNumber string) (*domain.PaymentInit, error) {
	order, err := s.accessibleOrder(ctx, actor, orderNumber)
	if err != nil {
		return nil, err
	}
	if domain.OrderStatus(order.Status) != domain.OrderPending {
		return nil, ErrPaymentNotRetryable
	}

	payment, err := s.store.GetPaymentByOrderID(ctx, order.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNoPaymentFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if isFinalPayment(payment.Status) {
		return nil, ErrPaymentNotRetryable
	}

	gateway, err := s.gateways.Get(payment.Gateway)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGateway, payment.Gateway)
	}

	customer, err := s.store.GetCustomer(ctx, order.CustomerID)
	if err != nil && !repository.IsNotFound(err) {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	shipTo, err := domain.UnmarshalAddress(order.ShippingAddress)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to decode shipping address", "order_number", order.OrderNumber, "error", err)
	}

	if telemetry.Business != nil {
		telemetry.Business.PaymentRetries.WithLabelValues(gateway.Name()).Inc()
	}
	init := s.initializePayment(ctx, gateway, order, payment, customer, shipTo, s.callbackURL)
	if !init.Initialized {
		return nil, ErrPaymentGatewayUnavailable
	}
	return &init, nil
}

// accessibleOrder loads an order the actor may see. Orders of other
// customers are reported as not found.
func (s *checkoutService) accessibleOrder(ctx context.Context, actor domain.Actor, orderNumber string) (repository.Order, error) {
	return loadAccessibleOrder(ctx, s.store, actor, orderNumber)
}

func (s *checkoutService) CancelOrder(ctx context.Context, actor domain.Actor, orderNumber, reason string) (*domain.OrderDetail, error) {
	order, err := s.accessibleOrder(ctx, actor, orderNumber)
	if err != nil {
		return nil, err
	}
	from := order.Status
	actorKind := "customer"
	if actor.IsAdmin() {
		actorKind = "admin"
	}

	var detail *domain.OrderDetail
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		order, err = q.GetOrderForUpdate(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}
		if !domain.OrderStatus(order.Status).CustomerCancellable() {
			return ErrOrderNotCancellable
		}
		from = order.Status

		order, err = cancelOrderLocked(ctx, q, s.ledger, order, reason, "")
		if err != nil {
			return err
		}
		detail, err = loadOrderDetail(ctx, q, order)
		return err
	})
	if errors.Is(err, errPaymentSettled) {
		// A paid order is cancelled by refunding its payment in full.
		res, err := s.refundOrder(ctx, order.ID, refundRequest{
			target:  domain.OrderCancelled,
			allowed: domain.OrderStatus.CustomerCancellable,
			denied:  ErrOrderNotCancellable,
			reason:  reason,
		})
		if err != nil {
			return nil, err
		}
		s.finishRefund(ctx, actorKind, res, reason)
		return res.detail, nil
	}
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order cancelled",
		"order_number", order.OrderNumber,
		"actor", actorKind,
		"reason", reason,
	)
	if telemetry.Business != nil {
		telemetry.Business.OrdersCancelled.WithLabelValues(actorKind).Inc()
	}
	recordTransition(ctx, from, order)
	s.notifier.Notify(ctx, newOrderEvent(domain.EventOrderCancelled, order))
	return detail, nil
}

func (s *checkoutService) ProcessRefund(ctx context.Context, actor domain.Actor, orderNumber string, params domain.RefundParams) (*domain.OrderDetail, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminRequired
	}
	if params.Amount < 0 {
		return nil, domain.NewValidationError("", "amount", "Refund amount cannot be negative")
	}

	order, err := s.accessibleOrder(ctx, actor, orderNumber)
	if err != nil {
		return nil, err
	}

	target := domain.OrderRefunded
	if params.Cancel {
		target = domain.OrderCancelled
	}
	allowed := func(status domain.OrderStatus) bool { return status.CanTransitionTo(target) }
	if !allowed(domain.OrderStatus(order.Status)) {
		return nil, ErrInvalidStatusTransition
	}

	adminNote := params.AdminNote
	if adminNote == "" && !params.Cancel {
		adminNote = params.Reason
	}
	res, err := s.refundOrder(ctx, order.ID, refundRequest{
		target:    target,
		allowed:   allowed,
		denied:    ErrInvalidStatusTransition,
		amount:    params.Amount,
		reason:    params.Reason,
		adminNote: adminNote,
	})
	if err != nil {
		return nil, err
	}
	s.finishRefund(ctx, "admin", res, params.Reason)
	return res.detail, nil
}

// refundRequest describes how a successful payment is returned and which
// status the order lands in.
type refundRequest struct {
	target    domain.OrderStatus
	allowed   func(domain.OrderStatus) bool
	denied    error // returned when allowed rejects the current status
	amount    int64 // zero refunds the full payment
	reason    string
	adminNote string
}

type refundResult struct {
	order     repository.Order
	detail    *domain.OrderDetail
	from      string
	payment   repository.Payment
	reference string
	amount    int64
}

// refundOrder refunds the order's payment at the gateway and records it.
// It holds the payment lock and the order row lock across the gateway
// call, so a payment is refunded at most once even under concurrent
// requests. A gateway error rolls everything back.
func (s *checkoutService) refundOrder(ctx context.Context, orderID uuid.UUID, req refundRequest) (*refundResult, error) {
	payment, err := s.store.GetPaymentByOrderID(ctx, orderID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNoPaymentFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	release, err := s.locker.Acquire(ctx, paymentLockKey(payment.TransactionReference))
	if err != nil {
		return nil, domain.Unavailable(err, "payment.refund", "Payment is being processed, please try again")
	}
	defer release()

	res := &refundResult{}
	issued := false
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		order, err := q.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}
		if !req.allowed(domain.OrderStatus(order.Status)) {
			return req.denied
		}

		// Re-read under the lock: a concurrent refund may have settled it.
		current, err := q.GetPaymentByOrderID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to get payment: %w", err)
		}
		if domain.PaymentStatus(current.Status) != domain.PaymentSuccessful {
			return ErrNoPaymentFound
		}

		amount := req.amount
		if amount == 0 {
			amount = current.AmountCents
		}
		if amount > current.AmountCents {
			return ErrRefundExceedsPayment
		}

		reference, err := s.refundWithGateway(ctx, current, amount, req.reason)
		if err != nil {
			return err
		}
		issued = true
		res.from = order.Status
		res.payment = current
		res.reference = reference
		res.amount = amount
		held := domain.OrderHoldsStock(order)

		if _, err := q.MarkPaymentRefunded(ctx, repository.MarkPaymentRefundedParams{
			ID:                current.ID,
			RefundReference:   reference,
			RefundAmountCents: amount,
		}); err != nil {
			return fmt.Errorf("failed to mark payment refunded: %w", err)
		}

		status := repository.UpdateOrderStatusParams{
			ID:        order.ID,
			Status:    string(req.target),
			AdminNote: optionalText(req.adminNote),
		}
		if req.target == domain.OrderCancelled {
			status.CancellationReason = optionalText(req.reason)
		}
		order, err = q.UpdateOrderStatus(ctx, status)
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		order, err = q.UpdateOrderPaymentStatus(ctx, repository.UpdateOrderPaymentStatusParams{
			ID:            order.ID,
			PaymentStatus: string(domain.PaymentRefunded),
		})
		if err != nil {
			return fmt.Errorf("failed to update order payment status: %w", err)
		}

		if held {
			if err := s.ledger.ReleaseOrder(ctx, q, order.ID); err != nil {
				return err
			}
		}
		res.order = order
		res.detail, err = loadOrderDetail(ctx, q, order)
		return err
	})
	if err != nil {
		if issued {
			// The provider holds the refund; a retry reuses the same
			// idempotency reference.
			s.logger.ErrorContext(ctx, "refund issued but not recorded",
				"reference", res.payment.TransactionReference,
				"refund_reference", res.reference,
				"amount_cents", res.amount,
				"error", err,
			)
			telemetry.CaptureErrorFromContext(ctx, err, map[string]interface{}{
				"reference":        res.payment.TransactionReference,
				"refund_reference": res.reference,
				"operation":        "refund",
			})
		}
		return nil, err
	}
	return res, nil
}

func (s *checkoutService) finishRefund(ctx context.Context, actorKind string, res *refundResult, reason string) {
	eventType := domain.EventOrderRefunded
	msg := "order refunded"
	cancelled := domain.OrderStatus(res.order.Status) == domain.OrderCancelled
	if cancelled {
		eventType = domain.EventOrderCancelled
		msg = "order cancelled and refunded"
	}

	s.logger.InfoContext(ctx, msg,
		"order_number", res.order.OrderNumber,
		"actor", actorKind,
		"refund_reference", res.reference,
		"amount_cents", res.amount,
	)
	if telemetry.Business != nil {
		telemetry.Business.RefundsIssued.WithLabelValues(res.payment.Gateway).Inc()
		telemetry.Business.RefundAmount.WithLabelValues(res.payment.Currency).Add(float64(res.amount))
		if cancelled {
			telemetry.Business.OrdersCancelled.WithLabelValues(actorKind).Inc()
		}
	}
	recordTransition(ctx, res.from, res.order)

	event := newOrderEvent(eventType, res.order)
	event.Reason = reason
	s.notifier.Notify(ctx, event)
}

// refundWithGateway refunds through the provider when it supports API
// refunds and returns the refund reference to store.
func (s *checkoutService) refundWithGateway(ctx context.Context, payment repository.Payment, amount int64, reason string) (string, error) {
	gateway, err := s.gateways.Get(payment.Gateway)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedGateway, payment.Gateway)
	}

	refunder, ok := gateway.(billing.Refunder)
	if !ok {
		return NewRefundReference(s.now()), nil
	}

	params := billing.RefundParams{
		Reference:   payment.TransactionReference,
		AmountCents: amount,
		Currency:    payment.Currency,
		Reason:      reason,
	}
	if payment.ProviderReference.Valid {
		params.ProviderReference = payment.ProviderReference.String
	}
	if payment.GatewayReference.Valid {
		params.GatewayReference = payment.GatewayReference.String
	}

	gctx, done := observeGateway(ctx, gateway.Name(), "refund")
	refund, err := refunder.Refund(gctx, params)
	done(err)
	if err != nil {
		if errors.Is(err, billing.ErrRefundNotSupported) {
			return NewRefundReference(s.now()), nil
		}
		s.logger.ErrorContext(ctx, "gateway refund failed",
			"reference", payment.TransactionReference,
			"gateway", gateway.Name(),
			"error", err,
		)
		return "", fmt.Errorf("%w: %v", ErrPaymentGatewayUnavailable, err)
	}
	if refund == nil || refund.ID == "" {
		return NewRefundReference(s.now()), nil
	}
	return refund.ID, nil
}

func optionalText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}
