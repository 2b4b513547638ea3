package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/repository"
)

// StockLine is a quantity of one sellable unit.
type StockLine struct {
	Unit     domain.UnitRef
	Name     string
	Quantity int32
}

// InventoryLedger is the only path that changes stock. Every method takes
// the Querier to run on so callers can put stock moves inside their own
// transaction.
type InventoryLedger struct {
	logger *slog.Logger
}

func NewInventoryLedger(logger *slog.Logger) *InventoryLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &InventoryLedger{logger: logger}
}

func unitParams(unit domain.UnitRef) repository.GetSellableUnitParams {
	return repository.GetSellableUnitParams{ProductID: unit.ProductID, VariantID: unit.VariantID}
}

func (l *InventoryLedger) loadUnit(ctx context.Context, q repository.Querier, unit domain.UnitRef) (repository.SellableUnit, error) {
	su, err := q.GetSellableUnit(ctx, unitParams(unit))
	if err != nil {
		if repository.IsNotFound(err) {
			return su, ErrUnitNotFound
		}
		return su, fmt.Errorf("failed to load unit %s: %w", unit, err)
	}
	return su, nil
}

// IsAvailable is an advisory precheck. A true result does not guarantee a
// later Reserve succeeds.
func (l *InventoryLedger) IsAvailable(ctx context.Context, q repository.Querier, unit domain.UnitRef, quantity int32) (bool, error) {
	if quantity < 1 {
		return false, ErrInvalidQuantity
	}
	su, err := l.loadUnit(ctx, q, unit)
	if err != nil {
		return false, err
	}
	return unitCovers(su, quantity), nil
}

func unitCovers(su repository.SellableUnit, quantity int32) bool {
	if !su.IsActive {
		return false
	}
	return !su.TrackInventory || su.StockQuantity >= quantity
}

// Reserve atomically takes quantity from the unit's stock. Untracked units
// always succeed.
func (l *InventoryLedger) Reserve(ctx context.Context, q repository.Querier, unit domain.UnitRef, quantity int32) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	move := stockMove(unit, quantity)
	var (
		n   int64
		err error
	)
	if unit.IsVariant() {
		n, err = q.ReserveVariantStock(ctx, move)
	} else {
		n, err = q.ReserveProductStock(ctx, move)
	}
	if err != nil {
		return fmt.Errorf("failed to reserve stock for %s: %w", unit, err)
	}
	if n > 0 {
		return nil
	}

	// Nothing updated: either the unit is gone or it could not cover the
	// quantity when the row lock was taken.
	return l.shortfall(ctx, q, unit, quantity)
}

// shortfall builds the error for a unit that cannot cover quantity.
func (l *InventoryLedger) shortfall(ctx context.Context, q repository.Querier, unit domain.UnitRef, quantity int32) error {
	su, err := l.loadUnit(ctx, q, unit)
	if err != nil {
		return err
	}
	if !su.IsActive {
		return ErrUnitUnavailable
	}
	return &InsufficientStockError{
		UnitID:    unit.String(),
		Name:      unitName(su),
		Requested: quantity,
		Available: max(su.StockQuantity, 0),
	}
}

// Release returns quantity to the unit's stock. It must be called exactly
// once per successful Reserve.
func (l *InventoryLedger) Release(ctx context.Context, q repository.Querier, unit domain.UnitRef, quantity int32) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	move := stockMove(unit, quantity)
	var (
		n   int64
		err error
	)
	if unit.IsVariant() {
		n, err = q.ReleaseVariantStock(ctx, move)
	} else {
		n, err = q.ReleaseProductStock(ctx, move)
	}
	if err != nil {
		return fmt.Errorf("failed to release stock for %s: %w", unit, err)
	}
	if n == 0 {
		l.logger.WarnContext(ctx, "stock release matched no unit", "unit", unit.String(), "quantity", quantity)
	}
	return nil
}

// ReserveAll reserves every line or none of them. Lines are taken in a
// stable order so concurrent checkouts lock rows in the same sequence.
func (l *InventoryLedger) ReserveAll(ctx context.Context, q repository.Querier, lines []StockLine) error {
	ordered := sortedLines(lines)

	for i, line := range ordered {
		if err := l.Reserve(ctx, q, line.Unit, line.Quantity); err != nil {
			if rerr := l.ReleaseAll(ctx, q, ordered[:i]); rerr != nil {
				l.logger.ErrorContext(ctx, "failed to undo partial reservation", "error", rerr)
			}
			return err
		}
	}
	return nil
}

// ReleaseAll releases every line.
func (l *InventoryLedger) ReleaseAll(ctx context.Context, q repository.Querier, lines []StockLine) error {
	for _, line := range lines {
		if err := l.Release(ctx, q, line.Unit, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseOrder releases the reservation of every line of an order.
func (l *InventoryLedger) ReleaseOrder(ctx context.Context, q repository.Querier, orderID uuid.UUID) error {
	items, err := q.ListOrderItems(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to list order items: %w", err)
	}
	return l.ReleaseAll(ctx, q, orderItemLines(items))
}

func orderItemLines(items []repository.OrderItem) []StockLine {
	lines := make([]StockLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, StockLine{
			Unit:     domain.UnitRef{ProductID: item.ProductID, VariantID: item.VariantID},
			Name:     item.ProductName,
			Quantity: item.Quantity,
		})
	}
	return lines
}

func sortedLines(lines []StockLine) []StockLine {
	ordered := append([]StockLine(nil), lines...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Unit.String() < ordered[j].Unit.String()
	})
	return ordered
}

func stockMove(unit domain.UnitRef, quantity int32) repository.StockMoveParams {
	id := unit.ProductID
	if unit.IsVariant() {
		id = uuid.UUID(unit.VariantID.Bytes)
	}
	return repository.StockMoveParams{ID: id, Quantity: quantity}
}

func unitName(su repository.SellableUnit) string {
	if su.VariantName.Valid && su.VariantName.String != "" {
		return su.Name + " (" + su.VariantName.String + ")"
	}
	return su.Name
}
