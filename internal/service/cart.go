package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/repository"
	"github.com/dukerupert/mercato/internal/telemetry"
)

type cartService struct {
	store    repository.Store
	ledger   *InventoryLedger
	currency string
	logger   *slog.Logger
}

// NewCartService creates a new CartService instance
func NewCartService(store repository.Store, ledger *InventoryLedger, currency string, logger *slog.Logger) domain.CartService {
	if logger == nil {
		logger = slog.Default()
	}
	if ledger == nil {
		ledger = NewInventoryLedger(logger)
	}
	if currency == "" {
		currency = "NGN"
	}
	return &cartService{
		store:    store,
		ledger:   ledger,
		currency: currency,
		logger:   logger,
	}
}

// getOrCreateCart returns the customer's active cart, creating it on first
// access. With forUpdate the cart row is locked for the rest of the
// transaction q belongs to.
func getOrCreateCart(ctx context.Context, q repository.Querier, customerID uuid.UUID, forUpdate bool) (repository.Cart, error) {
	var (
		cart repository.Cart
		err  error
	)
	if forUpdate {
		cart, err = q.GetActiveCartByCustomerForUpdate(ctx, customerID)
	} else {
		cart, err = q.GetActiveCartByCustomer(ctx, customerID)
	}
	if err == nil {
		return cart, nil
	}
	if !repository.IsNotFound(err) {
		return cart, fmt.Errorf("failed to get cart: %w", err)
	}

	cart, err = q.CreateCart(ctx, customerID)
	if err != nil {
		return cart, fmt.Errorf("failed to create cart: %w", err)
	}
	return cart, nil
}

func requireCustomer(actor domain.Actor) error {
	if actor.CustomerID == uuid.Nil {
		return domain.Unauthorized("", "Authentication required")
	}
	return nil
}

func (s *cartService) GetCart(ctx context.Context, actor domain.Actor) (*domain.CartView, error) {
	if err := requireCustomer(actor); err != nil {
		return nil, err
	}

	cart, err := getOrCreateCart(ctx, s.store, actor.CustomerID, false)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, s.store, cart)
}

func (s *cartService) AddItem(ctx context.Context, actor domain.Actor, params domain.AddCartItemParams) (*domain.CartView, error) {
	if err := requireCustomer(actor); err != nil {
		return nil, err
	}
	if params.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	var view *domain.CartView
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		cart, err := getOrCreateCart(ctx, q, actor.CustomerID, true)
		if err != nil {
			return err
		}

		su, err := s.ledger.loadUnit(ctx, q, params.Unit)
		if err != nil {
			return err
		}
		if !su.IsActive {
			return ErrUnitUnavailable
		}

		existing, err := q.GetCartItemByUnit(ctx, repository.GetCartItemByUnitParams{
			CartID:    cart.ID,
			ProductID: params.Unit.ProductID,
			VariantID: params.Unit.VariantID,
		})
		found := err == nil
		if err != nil && !repository.IsNotFound(err) {
			return fmt.Errorf("failed to get cart item: %w", err)
		}

		quantity := params.Quantity
		if found {
			quantity += existing.Quantity
		}
		if !unitCovers(su, quantity) {
			return &InsufficientStockError{
				UnitID:    params.Unit.String(),
				Name:      unitName(su),
				Requested: quantity,
				Available: max(su.StockQuantity, 0),
			}
		}

		if found {
			_, err = q.UpdateCartItem(ctx, repository.UpdateCartItemParams{
				ID:             existing.ID,
				Quantity:       quantity,
				UnitPriceCents: su.PriceCents,
			})
		} else {
			_, err = q.CreateCartItem(ctx, repository.CreateCartItemParams{
				CartID:         cart.ID,
				ProductID:      params.Unit.ProductID,
				VariantID:      params.Unit.VariantID,
				Quantity:       quantity,
				UnitPriceCents: su.PriceCents,
			})
		}
		if err != nil {
			return fmt.Errorf("failed to save cart item: %w", err)
		}

		if err := q.TouchCart(ctx, cart.ID); err != nil {
			return fmt.Errorf("failed to touch cart: %w", err)
		}

		view, err = s.view(ctx, q, cart)
		return err
	})
	if err != nil {
		if telemetry.Business != nil && domain.IsCode(err, domain.ECONFLICT) {
			telemetry.Business.StockRejections.WithLabelValues("cart").Inc()
		}
		return nil, err
	}

	if telemetry.Business != nil {
		kind := "product"
		if params.Unit.IsVariant() {
			kind = "variant"
		}
		telemetry.Business.CartItemsAdded.WithLabelValues(kind).Inc()
	}
	return view, nil
}

func (s *cartService) UpdateItem(ctx context.Context, actor domain.Actor, itemID uuid.UUID, quantity int32) (*domain.CartView, error) {
	if err := requireCustomer(actor); err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, actor, itemID)
	}

	var view *domain.CartView
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		cart, err := getOrCreateCart(ctx, q, actor.CustomerID, true)
		if err != nil {
			return err
		}

		item, err := q.GetCartItem(ctx, repository.GetCartItemParams{ID: itemID, CartID: cart.ID})
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrCartItemNotFound
			}
			return fmt.Errorf("failed to get cart item: %w", err)
		}

		unit := domain.UnitRef{ProductID: item.ProductID, VariantID: item.VariantID}
		su, err := s.ledger.loadUnit(ctx, q, unit)
		if err != nil {
			return err
		}
		if !su.IsActive {
			return ErrUnitUnavailable
		}
		if !unitCovers(su, quantity) {
			return &InsufficientStockError{
				UnitID:    unit.String(),
				Name:      unitName(su),
				Requested: quantity,
				Available: max(su.StockQuantity, 0),
			}
		}

		if _, err := q.UpdateCartItem(ctx, repository.UpdateCartItemParams{
			ID:             item.ID,
			Quantity:       quantity,
			UnitPriceCents: su.PriceCents,
		}); err != nil {
			return fmt.Errorf("failed to update cart item: %w", err)
		}
		if err := q.TouchCart(ctx, cart.ID); err != nil {
			return fmt.Errorf("failed to touch cart: %w", err)
		}

		view, err = s.view(ctx, q, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *cartService) RemoveItem(ctx context.Context, actor domain.Actor, itemID uuid.UUID) (*domain.CartView, error) {
	if err := requireCustomer(actor); err != nil {
		return nil, err
	}

	var view *domain.CartView
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		cart, err := getOrCreateCart(ctx, q, actor.CustomerID, true)
		if err != nil {
			return err
		}

		n, err := q.DeleteCartItem(ctx, repository.DeleteCartItemParams{ID: itemID, CartID: cart.ID})
		if err != nil {
			return fmt.Errorf("failed to delete cart item: %w", err)
		}
		if n == 0 {
			return ErrCartItemNotFound
		}
		if err := q.TouchCart(ctx, cart.ID); err != nil {
			return fmt.Errorf("failed to touch cart: %w", err)
		}

		view, err = s.view(ctx, q, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *cartService) Clear(ctx context.Context, actor domain.Actor) error {
	if err := requireCustomer(actor); err != nil {
		return err
	}

	return s.store.ExecTx(ctx, func(q repository.Querier) error {
		cart, err := getOrCreateCart(ctx, q, actor.CustomerID, true)
		if err != nil {
			return err
		}
		if err := q.ClearCartItems(ctx, cart.ID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		if err := q.TouchCart(ctx, cart.ID); err != nil {
			return fmt.Errorf("failed to touch cart: %w", err)
		}
		return nil
	})
}

func (s *cartService) MarkAbandoned(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.store.MarkAbandonedCarts(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark abandoned carts: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "abandoned carts marked", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

func (s *cartService) view(ctx context.Context, q repository.Querier, cart repository.Cart) (*domain.CartView, error) {
	lines, err := loadCartLines(ctx, q, cart.ID)
	if err != nil {
		return nil, err
	}

	view := &domain.CartView{
		ID:             cart.ID,
		Status:         cart.Status,
		Items:          lines,
		SubtotalCents:  Subtotal(lines),
		Currency:       s.currency,
		LastActivityAt: cart.LastActivityAt,
	}
	for _, line := range lines {
		view.ItemCount += line.Quantity
	}
	return view, nil
}

func loadCartLines(ctx context.Context, q repository.Querier, cartID uuid.UUID) ([]domain.CartLine, error) {
	items, err := q.ListCartItems(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}

	lines := make([]domain.CartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, toCartLine(item))
	}
	return lines, nil
}

func toCartLine(item repository.CartItemDetail) domain.CartLine {
	line := domain.CartLine{
		ID:             item.ID,
		ProductID:      item.ProductID,
		VariantID:      item.VariantID,
		CategoryID:     item.CategoryID,
		Sku:            item.Sku,
		Name:           item.ProductName,
		Quantity:       item.Quantity,
		UnitPriceCents: item.UnitPriceCents,
		LineTotalCents: item.UnitPriceCents * int64(item.Quantity),
		InStock:        !item.TrackInventory || item.StockQuantity >= item.Quantity,
	}
	if item.VariantName.Valid {
		line.VariantName = item.VariantName.String
	}
	return line
}
