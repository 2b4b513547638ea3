package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/mercato/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func productUnit(id uuid.UUID) domain.UnitRef {
	return domain.UnitRef{ProductID: id}
}

func TestInventoryLedger_ConcurrentReserve(t *testing.T) {
	const (
		callers = 20
		stock   = 7
	)
	store := newMemStore()
	productID := store.addProduct("kettle", 1000, stock, true)
	ledger := NewInventoryLedger(discardLogger())

	var (
		wg        sync.WaitGroup
		succeeded int32
		rejected  int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ledger.Reserve(context.Background(), store, productUnit(productID), 1)
			var stockErr *InsufficientStockError
			switch {
			case err == nil:
				atomic.AddInt32(&succeeded, 1)
			case errors.As(err, &stockErr):
				atomic.AddInt32(&rejected, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(stock), succeeded)
	assert.Equal(t, int32(callers-stock), rejected)
	assert.Equal(t, int32(0), store.stock(productID))
}

func TestInventoryLedger_ReserveReleaseRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		stock    int32
		track    bool
		quantity int32
	}{
		{name: "tracked", stock: 12, track: true, quantity: 5},
		{name: "tracked exact", stock: 3, track: true, quantity: 3},
		{name: "untracked", stock: 0, track: false, quantity: 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := newMemStore()
			productID := store.addProduct("mug", 500, tt.stock, tt.track)
			ledger := NewInventoryLedger(discardLogger())

			require.NoError(t, ledger.Reserve(ctx, store, productUnit(productID), tt.quantity))
			if tt.track {
				assert.Equal(t, tt.stock-tt.quantity, store.stock(productID))
			}
			require.NoError(t, ledger.Release(ctx, store, productUnit(productID), tt.quantity))
			assert.Equal(t, tt.stock, store.stock(productID))
		})
	}
}

func TestInventoryLedger_Reserve_Errors(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	productID := store.addProduct("lamp", 2500, 2, true)
	ledger := NewInventoryLedger(discardLogger())

	t.Run("insufficient stock names the unit", func(t *testing.T) {
		err := ledger.Reserve(ctx, store, productUnit(productID), 3)

		var stockErr *InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, "lamp", stockErr.Name)
		assert.Equal(t, int32(3), stockErr.Requested)
		assert.Equal(t, int32(2), stockErr.Available)
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
		assert.Equal(t, int32(2), store.stock(productID))
	})

	t.Run("unknown unit", func(t *testing.T) {
		err := ledger.Reserve(ctx, store, productUnit(uuid.New()), 1)
		assert.ErrorIs(t, err, ErrUnitNotFound)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		assert.ErrorIs(t, ledger.Reserve(ctx, store, productUnit(productID), 0), ErrInvalidQuantity)
		assert.ErrorIs(t, ledger.Release(ctx, store, productUnit(productID), -1), ErrInvalidQuantity)
	})
}

func TestInventoryLedger_ReserveAll_UndoesPartialReservation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	plenty := store.addProduct("a-plenty", 100, 10, true)
	scarce := store.addProduct("b-scarce", 100, 1, true)
	ledger := NewInventoryLedger(discardLogger())

	err := ledger.ReserveAll(ctx, store, []StockLine{
		{Unit: productUnit(plenty), Quantity: 4},
		{Unit: productUnit(scarce), Quantity: 2},
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "b-scarce", stockErr.Name)
	assert.Equal(t, int32(10), store.stock(plenty))
	assert.Equal(t, int32(1), store.stock(scarce))
}

func TestInventoryLedger_Variants(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	productID := store.addProduct("shirt", 4000, 100, true)
	variantID := store.addVariant(productID, "XL", 4500, 2)
	ledger := NewInventoryLedger(discardLogger())
	unit := domain.UnitRef{ProductID: productID, VariantID: variantID}

	ok, err := ledger.IsAvailable(ctx, store, unit, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, ledger.Reserve(ctx, store, unit, 2))
	assert.Equal(t, int32(0), store.stock(variantID.Bytes))
	assert.Equal(t, int32(100), store.stock(productID), "variant stock is tracked separately")

	ok, err = ledger.IsAvailable(ctx, store, unit, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	err = ledger.Reserve(ctx, store, unit, 1)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "shirt (XL)", stockErr.Name)
}
