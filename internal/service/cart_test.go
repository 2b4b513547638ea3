package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/mercato/internal/domain"
)

func newTestCartService(store *memStore) domain.CartService {
	return NewCartService(store, NewInventoryLedger(discardLogger()), "NGN", discardLogger())
}

func TestCartService_GetCart_CreatesOnFirstAccess(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	carts := newTestCartService(store)
	actor := domain.Actor{CustomerID: store.addCustomer("ada@example.com", "Ada"), Role: domain.RoleCustomer}

	first, err := carts.GetCart(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, string(domain.CartActive), first.Status)
	assert.Empty(t, first.Items)
	assert.Equal(t, "NGN", first.Currency)

	second, err := carts.GetCart(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "one active cart per customer")
}

func TestCartService_RequiresCustomer(t *testing.T) {
	_, err := newTestCartService(newMemStore()).GetCart(context.Background(), domain.Actor{})
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
}

func TestCartService_AddItem(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	carts := newTestCartService(store)
	actor := domain.Actor{CustomerID: store.addCustomer("ada@example.com", "Ada"), Role: domain.RoleCustomer}
	productID := store.addProduct("kettle", 1000, 5, true)
	unit := productUnit(productID)

	view, err := carts.AddItem(ctx, actor, domain.AddCartItemParams{Unit: unit, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, int64(2000), view.SubtotalCents)

	// Same unit merges into the line and refreshes the price snapshot.
	store.setPrice(productID, 1200)
	view, err = carts.AddItem(ctx, actor, domain.AddCartItemParams{Unit: unit, Quantity: 1})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	line := view.Items[0]
	assert.Equal(t, int32(3), line.Quantity)
	assert.Equal(t, int64(1200), line.UnitPriceCents)
	assert.Equal(t, int64(3600), line.LineTotalCents)
	assert.True(t, line.InStock)
	assert.Equal(t, int32(3), view.ItemCount)
	assert.Equal(t, int64(3600), view.SubtotalCents)

	// Adding to a cart never reserves stock.
	assert.Equal(t, int32(5), store.stock(productID))
}

func TestCartService_AddItem_Errors(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	carts := newTestCartService(store)
	actor := domain.Actor{CustomerID: store.addCustomer("ada@example.com", "Ada"), Role: domain.RoleCustomer}
	productID := store.addProduct("kettle", 1000, 2, true)

	tests := []struct {
		name    string
		params  domain.AddCartItemParams
		wantErr error
	}{
		{
			name:    "zero quantity",
			params:  domain.AddCartItemParams{Unit: productUnit(productID), Quantity: 0},
			wantErr: ErrInvalidQuantity,
		},
		{
			name:    "unknown product",
			params:  domain.AddCartItemParams{Unit: productUnit(uuid.New()), Quantity: 1},
			wantErr: ErrUnitNotFound,
		},
		{
			name:    "more than in stock",
			params:  domain.AddCartItemParams{Unit: productUnit(productID), Quantity: 3},
			wantErr: ErrInsufficientStock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := carts.AddItem(ctx, actor, tt.params)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	view, err := carts.GetCart(ctx, actor)
	require.NoError(t, err)
	assert.Empty(t, view.Items, "rejected adds leave the cart unchanged")
}

func TestCartService_UpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	carts := newTestCartService(store)
	actor := domain.Actor{CustomerID: store.addCustomer("ada@example.com", "Ada"), Role: domain.RoleCustomer}
	kettle := store.addProduct("kettle", 1000, 10, true)
	mug := store.addProduct("mug", 300, 10, true)

	_, err := carts.AddItem(ctx, actor, domain.AddCartItemParams{Unit: productUnit(kettle), Quantity: 1})
	require.NoError(t, err)
	view, err := carts.AddItem(ctx, actor, domain.AddCartItemParams{Unit: productUnit(mug), Quantity: 1})
	require.NoError(t, err)
	require.Len(t, view.Items, 2)

	var kettleLine, mugLine uuid.UUID
	for _, line := range view.Items {
		if line.ProductID == kettle {
			kettleLine = line.ID
		} else {
			mugLine = line.ID
		}
	}

	view, err = carts.UpdateItem(ctx, actor, kettleLine, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4*1000+300), view.SubtotalCents)

	_, err = carts.UpdateItem(ctx, actor, kettleLine, 11)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = carts.UpdateItem(ctx, actor, kettleLine, -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	view, err = carts.UpdateItem(ctx, actor, mugLine, 0)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, kettle, view.Items[0].ProductID)

	_, err = carts.RemoveItem(ctx, actor, mugLine)
	assert.ErrorIs(t, err, ErrCartItemNotFound)

	_, err = carts.UpdateItem(ctx, actor, uuid.New(), 2)
	assert.ErrorIs(t, err, ErrCartItemNotFound)

	require.NoError(t, carts.Clear(ctx, actor))
	view, err = carts.GetCart(ctx, actor)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestCartService_ItemsAreScopedToOwner(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	carts := newTestCartService(store)
	owner := domain.Actor{CustomerID: store.addCustomer("ada@example.com", "Ada"), Role: domain.RoleCustomer}
	other := domain.Actor{CustomerID: store.addCustomer("bo@example.com", "Bo"), Role: domain.RoleCustomer}
	productID := store.addProduct("kettle", 1000, 10, true)

	view, err := carts.AddItem(ctx, owner, domain.AddCartItemParams{Unit: productUnit(productID), Quantity: 1})
	require.NoError(t, err)

	_, err = carts.RemoveItem(ctx, other, view.Items[0].ID)
	assert.ErrorIs(t, err, ErrCartItemNotFound)
}

func TestCartService_MarkAbandoned(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	carts := newTestCartService(store)
	withItems := domain.Actor{CustomerID: store.addCustomer("ada@example.com", "Ada"), Role: domain.RoleCustomer}
	empty := domain.Actor{CustomerID: store.addCustomer("bo@example.com", "Bo"), Role: domain.RoleCustomer}
	productID := store.addProduct("kettle", 1000, 10, true)

	_, err := carts.AddItem(ctx, withItems, domain.AddCartItemParams{Unit: productUnit(productID), Quantity: 1})
	require.NoError(t, err)
	_, err = carts.GetCart(ctx, empty)
	require.NoError(t, err)

	n, err := carts.MarkAbandoned(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// The next access starts a fresh cart.
	view, err := carts.GetCart(ctx, withItems)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}
