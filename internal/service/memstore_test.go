package service

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/mercato/internal/repository"
)

// memUnit is a product, or a variant when variantID is valid.
type memUnit struct {
	productID  uuid.UUID
	variantID  pgtype.UUID
	categoryID pgtype.UUID
	sku        string
	name       string
	variant    string
	price      int64
	track      bool
	stock      int32
	active     bool
}

type memState struct {
	units      map[uuid.UUID]memUnit
	customers  map[uuid.UUID]repository.Customer
	carts      map[uuid.UUID]repository.Cart
	cartItems  map[uuid.UUID]repository.CartItem
	promos     map[uuid.UUID]repository.PromoCode
	orders     map[uuid.UUID]repository.Order
	orderItems map[uuid.UUID][]repository.OrderItem
	payments   map[uuid.UUID]repository.Payment
	jobs       []repository.Job
}

func (s memState) clone() memState {
	c := memState{
		units:      make(map[uuid.UUID]memUnit, len(s.units)),
		customers:  make(map[uuid.UUID]repository.Customer, len(s.customers)),
		carts:      make(map[uuid.UUID]repository.Cart, len(s.carts)),
		cartItems:  make(map[uuid.UUID]repository.CartItem, len(s.cartItems)),
		promos:     make(map[uuid.UUID]repository.PromoCode, len(s.promos)),
		orders:     make(map[uuid.UUID]repository.Order, len(s.orders)),
		orderItems: make(map[uuid.UUID][]repository.OrderItem, len(s.orderItems)),
		payments:   make(map[uuid.UUID]repository.Payment, len(s.payments)),
		jobs:       append([]repository.Job(nil), s.jobs...),
	}
	for k, v := range s.units {
		c.units[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.cartItems {
		c.cartItems[k] = v
	}
	for k, v := range s.promos {
		c.promos[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderItems {
		c.orderItems[k] = append([]repository.OrderItem(nil), v...)
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return c
}

// memStore is an in-memory repository.Store. Transactions are serialized
// and roll back by restoring a snapshot. Queries it does not implement
// panic through the nil embedded Querier.
type memStore struct {
	repository.Querier

	txMu sync.Mutex
	mu   sync.Mutex
	st   memState

	// failOn makes the named operation fail once.
	failOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		st:     memState{}.clone(),
		failOn: map[string]error{},
	}
}

var _ repository.Store = (*memStore)(nil)

func (m *memStore) ExecTx(ctx context.Context, fn func(repository.Querier) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.st.clone()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.st = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) fail(op string) error {
	if err, ok := m.failOn[op]; ok {
		delete(m.failOn, op)
		return err
	}
	return nil
}

// --- seeding helpers ---

func (m *memStore) addCustomer(email, first string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.st.customers[id] = repository.Customer{ID: id, Email: email, FirstName: first}
	return id
}

func (m *memStore) addProduct(name string, price int64, stock int32, track bool) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.st.units[id] = memUnit{
		productID:  id,
		categoryID: pgtype.UUID{Bytes: uuid.New(), Valid: true},
		sku:        "SKU-" + name,
		name:       name,
		price:      price,
		track:      track,
		stock:      stock,
		active:     true,
	}
	return id
}

func (m *memStore) addVariant(productID uuid.UUID, name string, price int64, stock int32) pgtype.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	parent := m.st.units[productID]
	id := uuid.New()
	m.st.units[id] = memUnit{
		productID:  productID,
		variantID:  pgtype.UUID{Bytes: id, Valid: true},
		categoryID: parent.categoryID,
		sku:        parent.sku + "-" + name,
		name:       parent.name,
		variant:    name,
		price:      price,
		track:      true,
		stock:      stock,
		active:     true,
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

func (m *memStore) setPrice(unitID uuid.UUID, price int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.st.units[unitID]
	u.price = price
	m.st.units[unitID] = u
}

func (m *memStore) stock(unitID uuid.UUID) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.units[unitID].stock
}

func (m *memStore) addPromo(p repository.PromoCode) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.st.promos[p.ID] = p
	return p.ID
}

func (m *memStore) promo(id uuid.UUID) repository.PromoCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.promos[id]
}

func (m *memStore) order(id uuid.UUID) repository.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.orders[id]
}

func (m *memStore) paymentFor(orderID uuid.UUID) repository.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.st.payments {
		if p.OrderID == orderID {
			return p
		}
	}
	return repository.Payment{}
}

func (m *memStore) counts() (orders, payments int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.st.orders), len(m.st.payments)
}

func (m *memStore) jobTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.st.jobs))
	for _, j := range m.st.jobs {
		types = append(types, j.JobType)
	}
	return types
}

func numeric(v int64) pgtype.Numeric {
	return pgtype.Numeric{Int: big.NewInt(v), Exp: 0, Valid: true}
}

// --- catalog and inventory ---

func (m *memStore) GetSellableUnit(ctx context.Context, arg repository.GetSellableUnitParams) (repository.SellableUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := arg.ProductID
	if arg.VariantID.Valid {
		key = uuid.UUID(arg.VariantID.Bytes)
	}
	u, ok := m.st.units[key]
	if !ok || u.productID != arg.ProductID || u.variantID.Valid != arg.VariantID.Valid {
		return repository.SellableUnit{}, pgx.ErrNoRows
	}
	su := repository.SellableUnit{
		ProductID:      u.productID,
		VariantID:      u.variantID,
		CategoryID:     u.categoryID,
		Sku:            u.sku,
		Name:           u.name,
		Attributes:     []byte("{}"),
		PriceCents:     u.price,
		TrackInventory: u.track,
		StockQuantity:  u.stock,
		IsActive:       u.active,
	}
	if u.variant != "" {
		su.VariantName = pgtype.Text{String: u.variant, Valid: true}
	}
	return su, nil
}

func (m *memStore) reserve(id uuid.UUID, qty int32, variant bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.st.units[id]
	if !ok || u.variantID.Valid != variant || !u.active {
		return 0
	}
	if u.track {
		if u.stock < qty {
			return 0
		}
		u.stock -= qty
	}
	m.st.units[id] = u
	return 1
}

func (m *memStore) release(id uuid.UUID, qty int32, variant bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.st.units[id]
	if !ok || u.variantID.Valid != variant {
		return 0
	}
	if u.track {
		u.stock += qty
	}
	m.st.units[id] = u
	return 1
}

func (m *memStore) ReserveProductStock(ctx context.Context, arg repository.StockMoveParams) (int64, error) {
	if err := m.fail("ReserveProductStock"); err != nil {
		return 0, err
	}
	return m.reserve(arg.ID, arg.Quantity, false), nil
}

func (m *memStore) ReserveVariantStock(ctx context.Context, arg repository.StockMoveParams) (int64, error) {
	return m.reserve(arg.ID, arg.Quantity, true), nil
}

func (m *memStore) ReleaseProductStock(ctx context.Context, arg repository.StockMoveParams) (int64, error) {
	return m.release(arg.ID, arg.Quantity, false), nil
}

func (m *memStore) ReleaseVariantStock(ctx context.Context, arg repository.StockMoveParams) (int64, error) {
	return m.release(arg.ID, arg.Quantity, true), nil
}

func (m *memStore) GetCustomer(ctx context.Context, id uuid.UUID) (repository.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.st.customers[id]
	if !ok {
		return c, pgx.ErrNoRows
	}
	return c, nil
}

// --- carts ---

func (m *memStore) activeCart(customerID uuid.UUID) (repository.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.st.carts {
		if c.CustomerID == customerID && c.Status == "active" {
			return c, nil
		}
	}
	return repository.Cart{}, pgx.ErrNoRows
}

func (m *memStore) GetActiveCartByCustomer(ctx context.Context, customerID uuid.UUID) (repository.Cart, error) {
	return m.activeCart(customerID)
}

func (m *memStore) GetActiveCartByCustomerForUpdate(ctx context.Context, customerID uuid.UUID) (repository.Cart, error) {
	return m.activeCart(customerID)
}

func (m *memStore) CreateCart(ctx context.Context, customerID uuid.UUID) (repository.Cart, error) {
	if c, err := m.activeCart(customerID); err == nil {
		return c, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	c := repository.Cart{
		ID:             uuid.New(),
		CustomerID:     customerID,
		Status:         "active",
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.st.carts[c.ID] = c
	return c, nil
}

func (m *memStore) TouchCart(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.st.carts[id]
	c.LastActivityAt = time.Now()
	m.st.carts[id] = c
	return nil
}

func (m *memStore) UpdateCartStatus(ctx context.Context, arg repository.UpdateCartStatusParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.st.carts[arg.ID]
	c.Status = arg.Status
	m.st.carts[arg.ID] = c
	return nil
}

func (m *memStore) MarkAbandonedCarts(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, c := range m.st.carts {
		if c.Status != "active" || !c.LastActivityAt.Before(cutoff) {
			continue
		}
		hasItems := false
		for _, item := range m.st.cartItems {
			if item.CartID == id {
				hasItems = true
				break
			}
		}
		if hasItems {
			c.Status = "abandoned"
			m.st.carts[id] = c
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetCartItem(ctx context.Context, arg repository.GetCartItemParams) (repository.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.st.cartItems[arg.ID]
	if !ok || item.CartID != arg.CartID {
		return repository.CartItem{}, pgx.ErrNoRows
	}
	return item, nil
}

func (m *memStore) GetCartItemByUnit(ctx context.Context, arg repository.GetCartItemByUnitParams) (repository.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.st.cartItems {
		if item.CartID == arg.CartID && item.ProductID == arg.ProductID && item.VariantID == arg.VariantID {
			return item, nil
		}
	}
	return repository.CartItem{}, pgx.ErrNoRows
}

func (m *memStore) CreateCartItem(ctx context.Context, arg repository.CreateCartItemParams) (repository.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	item := repository.CartItem{
		ID:             uuid.New(),
		CartID:         arg.CartID,
		ProductID:      arg.ProductID,
		VariantID:      arg.VariantID,
		Quantity:       arg.Quantity,
		UnitPriceCents: arg.UnitPriceCents,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.st.cartItems[item.ID] = item
	return item, nil
}

func (m *memStore) UpdateCartItem(ctx context.Context, arg repository.UpdateCartItemParams) (repository.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.st.cartItems[arg.ID]
	if !ok {
		return item, pgx.ErrNoRows
	}
	item.Quantity = arg.Quantity
	item.UnitPriceCents = arg.UnitPriceCents
	m.st.cartItems[arg.ID] = item
	return item, nil
}

func (m *memStore) DeleteCartItem(ctx context.Context, arg repository.DeleteCartItemParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.st.cartItems[arg.ID]
	if !ok || item.CartID != arg.CartID {
		return 0, nil
	}
	delete(m.st.cartItems, arg.ID)
	return 1, nil
}

func (m *memStore) ClearCartItems(ctx context.Context, cartID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, item := range m.st.cartItems {
		if item.CartID == cartID {
			delete(m.st.cartItems, id)
		}
	}
	return nil
}

func (m *memStore) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]repository.CartItemDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []repository.CartItemDetail
	for _, item := range m.st.cartItems {
		if item.CartID != cartID {
			continue
		}
		key := item.ProductID
		if item.VariantID.Valid {
			key = uuid.UUID(item.VariantID.Bytes)
		}
		u := m.st.units[key]
		d := repository.CartItemDetail{
			ID:                item.ID,
			CartID:            item.CartID,
			ProductID:         item.ProductID,
			VariantID:         item.VariantID,
			Quantity:          item.Quantity,
			UnitPriceCents:    item.UnitPriceCents,
			CategoryID:        u.categoryID,
			Sku:               u.sku,
			ProductName:       u.name,
			Attributes:        []byte("{}"),
			CurrentPriceCents: u.price,
			TrackInventory:    u.track,
			StockQuantity:     u.stock,
		}
		if u.variant != "" {
			d.VariantName = pgtype.Text{String: u.variant, Valid: true}
		}
		items = append(items, d)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Sku < items[j].Sku
	})
	return items, nil
}

// --- promo codes ---

func (m *memStore) GetPromoCodeByCode(ctx context.Context, code string) (repository.PromoCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.st.promos {
		if p.Code == code {
			return p, nil
		}
	}
	return repository.PromoCode{}, pgx.ErrNoRows
}

func (m *memStore) IncrementPromoUsage(ctx context.Context, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.promos[id]
	if !ok || (p.UsageLimit.Valid && p.UsageCount >= p.UsageLimit.Int32) {
		return 0, nil
	}
	p.UsageCount++
	m.st.promos[id] = p
	return 1, nil
}

func (m *memStore) CountCustomerPromoUsage(ctx context.Context, arg repository.CountCustomerPromoUsageParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, o := range m.st.orders {
		if o.PromoCodeID.Valid && uuid.UUID(o.PromoCodeID.Bytes) == arg.PromoCodeID &&
			o.CustomerID == arg.CustomerID && o.PromoCommittedAt.Valid {
			n++
		}
	}
	return n, nil
}

func (m *memStore) MarkOrderPromoCommitted(ctx context.Context, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.st.orders[id]
	if !ok || o.PromoCommittedAt.Valid {
		return 0, nil
	}
	o.PromoCommittedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	m.st.orders[id] = o
	return 1, nil
}

// --- orders ---

func (m *memStore) CreateOrder(ctx context.Context, arg repository.CreateOrderParams) (repository.Order, error) {
	if err := m.fail("CreateOrder"); err != nil {
		return repository.Order{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	o := repository.Order{
		ID:                uuid.New(),
		OrderNumber:       arg.OrderNumber,
		CustomerID:        arg.CustomerID,
		CustomerEmail:     arg.CustomerEmail,
		Status:            "pending",
		PaymentStatus:     "pending",
		FulfillmentStatus: "unfulfilled",
		Currency:          arg.Currency,
		SubtotalCents:     arg.SubtotalCents,
		DiscountCents:     arg.DiscountCents,
		ShippingCents:     arg.ShippingCents,
		TaxCents:          arg.TaxCents,
		TotalCents:        arg.TotalCents,
		PromoCodeID:       arg.PromoCodeID,
		PromoCode:         arg.PromoCode,
		ShippingAddress:   arg.ShippingAddress,
		BillingAddress:    arg.BillingAddress,
		CustomerNote:      arg.CustomerNote,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	m.st.orders[o.ID] = o
	return o, nil
}

func (m *memStore) GetOrderByID(ctx context.Context, id uuid.UUID) (repository.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.st.orders[id]
	if !ok {
		return o, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (repository.Order, error) {
	return m.GetOrderByID(ctx, id)
}

func (m *memStore) GetOrderByNumber(ctx context.Context, orderNumber string) (repository.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.st.orders {
		if o.OrderNumber == orderNumber {
			return o, nil
		}
	}
	return repository.Order{}, pgx.ErrNoRows
}

func (m *memStore) ListOrders(ctx context.Context, arg repository.ListOrdersParams) ([]repository.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.Order
	for _, o := range m.st.orders {
		if arg.CustomerID.Valid && o.CustomerID != uuid.UUID(arg.CustomerID.Bytes) {
			continue
		}
		if arg.Status.Valid && o.Status != arg.Status.String {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	start := min(int(arg.Offset), len(out))
	end := min(start+int(arg.Limit), len(out))
	return out[start:end], nil
}

func stamp(ts *pgtype.Timestamptz, now time.Time) {
	if !ts.Valid {
		*ts = pgtype.Timestamptz{Time: now, Valid: true}
	}
}

func (m *memStore) UpdateOrderStatus(ctx context.Context, arg repository.UpdateOrderStatusParams) (repository.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.st.orders[arg.ID]
	if !ok {
		return o, pgx.ErrNoRows
	}
	now := time.Now()
	o.Status = arg.Status
	switch arg.Status {
	case "confirmed":
		stamp(&o.ConfirmedAt, now)
	case "shipped":
		stamp(&o.ShippedAt, now)
		o.FulfillmentStatus = "fulfilled"
	case "delivered":
		stamp(&o.DeliveredAt, now)
		o.FulfillmentStatus = "fulfilled"
	case "cancelled":
		stamp(&o.CancelledAt, now)
	case "refunded":
		stamp(&o.RefundedAt, now)
	}
	if arg.AdminNote.Valid {
		o.AdminNote = arg.AdminNote
	}
	if arg.CancellationReason.Valid {
		o.CancellationReason = arg.CancellationReason
	}
	o.UpdatedAt = now
	m.st.orders[arg.ID] = o
	return o, nil
}

func (m *memStore) UpdateOrderPaymentStatus(ctx context.Context, arg repository.UpdateOrderPaymentStatusParams) (repository.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.st.orders[arg.ID]
	if !ok {
		return o, pgx.ErrNoRows
	}
	o.PaymentStatus = arg.PaymentStatus
	m.st.orders[arg.ID] = o
	return o, nil
}

func (m *memStore) UpdateOrderShipping(ctx context.Context, arg repository.UpdateOrderShippingParams) (repository.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.st.orders[arg.ID]
	if !ok {
		return o, pgx.ErrNoRows
	}
	o.TrackingNumber = arg.TrackingNumber
	o.Carrier = arg.Carrier
	m.st.orders[arg.ID] = o
	return o, nil
}

func (m *memStore) CreateOrderItem(ctx context.Context, arg repository.CreateOrderItemParams) (repository.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := repository.OrderItem{
		ID:                uuid.New(),
		OrderID:           arg.OrderID,
		ProductID:         arg.ProductID,
		VariantID:         arg.VariantID,
		CategoryID:        arg.CategoryID,
		ProductName:       arg.ProductName,
		Sku:               arg.Sku,
		VariantAttributes: arg.VariantAttributes,
		UnitPriceCents:    arg.UnitPriceCents,
		Quantity:          arg.Quantity,
		DiscountCents:     arg.DiscountCents,
		TotalCents:        arg.TotalCents,
		CreatedAt:         time.Now(),
	}
	m.st.orderItems[arg.OrderID] = append(m.st.orderItems[arg.OrderID], item)
	return item, nil
}

func (m *memStore) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]repository.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repository.OrderItem(nil), m.st.orderItems[orderID]...), nil
}

// --- payments ---

func (m *memStore) CreatePayment(ctx context.Context, arg repository.CreatePaymentParams) (repository.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	p := repository.Payment{
		ID:                   uuid.New(),
		OrderID:              arg.OrderID,
		TransactionReference: arg.TransactionReference,
		Gateway:              arg.Gateway,
		Method:               arg.Method,
		Status:               "pending",
		AmountCents:          arg.AmountCents,
		Currency:             arg.Currency,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	m.st.payments[p.ID] = p
	return p, nil
}

func (m *memStore) findPayment(match func(repository.Payment) bool) (repository.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.st.payments {
		if match(p) {
			return p, nil
		}
	}
	return repository.Payment{}, pgx.ErrNoRows
}

func (m *memStore) GetPaymentByReference(ctx context.Context, reference string) (repository.Payment, error) {
	return m.findPayment(func(p repository.Payment) bool { return p.TransactionReference == reference })
}

func (m *memStore) GetPaymentByReferenceForUpdate(ctx context.Context, reference string) (repository.Payment, error) {
	return m.GetPaymentByReference(ctx, reference)
}

func (m *memStore) GetPaymentByProviderReference(ctx context.Context, arg repository.GetPaymentByProviderReferenceParams) (repository.Payment, error) {
	return m.findPayment(func(p repository.Payment) bool {
		return p.Gateway == arg.Gateway &&
			((p.ProviderReference.Valid && p.ProviderReference.String == arg.Reference) ||
				(p.GatewayReference.Valid && p.GatewayReference.String == arg.Reference))
	})
}

func (m *memStore) GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (repository.Payment, error) {
	return m.findPayment(func(p repository.Payment) bool { return p.OrderID == orderID })
}

// updatePayment applies fn when the payment's status is one of from.
func (m *memStore) updatePayment(id uuid.UUID, from []string, fn func(*repository.Payment)) (repository.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.payments[id]
	if !ok {
		return p, pgx.ErrNoRows
	}
	if from != nil {
		allowed := false
		for _, s := range from {
			if p.Status == s {
				allowed = true
			}
		}
		if !allowed {
			return repository.Payment{}, pgx.ErrNoRows
		}
	}
	fn(&p)
	p.UpdatedAt = time.Now()
	m.st.payments[id] = p
	return p, nil
}

var unfinished = []string{"pending", "processing"}

func (m *memStore) SetPaymentInitialized(ctx context.Context, arg repository.SetPaymentInitializedParams) (repository.Payment, error) {
	return m.updatePayment(arg.ID, nil, func(p *repository.Payment) {
		p.AuthorizationUrl = arg.AuthorizationUrl
		p.ProviderReference = arg.ProviderReference
		if p.Status == "pending" {
			p.Status = "processing"
		}
	})
}

func (m *memStore) MarkPaymentSuccessful(ctx context.Context, arg repository.MarkPaymentSuccessfulParams) (repository.Payment, error) {
	return m.updatePayment(arg.ID, unfinished, func(p *repository.Payment) {
		p.Status = "successful"
		p.GatewayReference = arg.GatewayReference
		p.GatewayResponse = arg.GatewayResponse
		p.Channel = arg.Channel
		p.CardType = arg.CardType
		p.CardLastFour = arg.CardLastFour
		p.BankName = arg.BankName
		p.PaidAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	})
}

func (m *memStore) MarkPaymentFailed(ctx context.Context, arg repository.MarkPaymentFailedParams) (repository.Payment, error) {
	return m.updatePayment(arg.ID, unfinished, func(p *repository.Payment) {
		p.Status = "failed"
		p.GatewayResponse = arg.GatewayResponse
		p.FailedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	})
}

func (m *memStore) MarkPaymentCancelled(ctx context.Context, id uuid.UUID) (int64, error) {
	_, err := m.updatePayment(id, unfinished, func(p *repository.Payment) {
		p.Status = "cancelled"
	})
	if err != nil {
		return 0, nil
	}
	return 1, nil
}

func (m *memStore) MarkPaymentRefunded(ctx context.Context, arg repository.MarkPaymentRefundedParams) (repository.Payment, error) {
	if err := m.fail("MarkPaymentRefunded"); err != nil {
		return repository.Payment{}, err
	}
	return m.updatePayment(arg.ID, []string{"successful"}, func(p *repository.Payment) {
		p.Status = "refunded"
		p.RefundReference = pgtype.Text{String: arg.RefundReference, Valid: true}
		p.RefundAmountCents = pgtype.Int8{Int64: arg.RefundAmountCents, Valid: true}
		p.RefundedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	})
}

// --- jobs ---

func (m *memStore) EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := repository.Job{
		ID:          uuid.New(),
		JobType:     arg.JobType,
		Queue:       arg.Queue,
		Payload:     arg.Payload,
		Status:      "pending",
		Priority:    arg.Priority,
		MaxRetries:  arg.MaxRetries,
		ScheduledAt: arg.ScheduledAt,
	}
	m.st.jobs = append(m.st.jobs, j)
	return j, nil
}
