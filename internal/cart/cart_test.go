package cart

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MiriamHerrera/cosmetics-api/internal/catalog"
)

func newTestCatalog(t *testing.T) *catalog.Service {
	t.Helper()
	return catalog.New(nil, time.Minute)
}

func seedProduct(t *testing.T, products *catalog.Service, name string, price int64, stock int) string {
	t.Helper()
	p, err := products.CreateProduct(context.Background(), catalog.ProductInput{
		Name:       name,
		Price:      decimal.NewFromInt(price),
		StockTotal: stock,
	})
	if err != nil {
		t.Fatalf("CreateProduct(%s) returned error: %v", name, err)
	}
	return p.ID
}

func newTestService(t *testing.T) (*Service, *catalog.Service) {
	t.Helper()
	products := newTestCatalog(t)
	return New(nil, products, time.Hour, 24*time.Hour), products
}

func TestGetAbsentCartIsEmptyAndActive(t *testing.T) {
	svc, _ := newTestService(t)

	c, err := svc.Get(context.Background(), Identity{SessionID: "s1"})
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if c.ID != "" {
		t.Fatalf("absent cart should have no id, got %q", c.ID)
	}
	if c.Status != StatusActive {
		t.Fatalf("absent cart status = %q, want %q", c.Status, StatusActive)
	}
	if len(c.Items) != 0 {
		t.Fatalf("absent cart should have no items, got %d", len(c.Items))
	}
}

func TestAddItemCreatesCartLazily(t *testing.T) {
	svc, products := newTestService(t)
	pid := seedProduct(t, products, "Lip Tint", 120, 5)

	c, err := svc.AddItem(context.Background(), Identity{SessionID: "s1"}, pid, 3)
	if err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	if c.ID == "" {
		t.Fatal("expected a cart row after first add")
	}
	if c.Type != TypeGuest {
		t.Fatalf("cart type = %q, want %q", c.Type, TypeGuest)
	}
	if len(c.Items) != 1 || c.Items[0].Quantity != 3 {
		t.Fatalf("unexpected items: %+v", c.Items)
	}
	if !c.Total.Equal(decimal.NewFromInt(360)) {
		t.Fatalf("total = %s, want 360", c.Total)
	}
}

func TestAddItemIncrementsOwnLine(t *testing.T) {
	svc, products := newTestService(t)
	pid := seedProduct(t, products, "Serum", 100, 5)
	id := Identity{SessionID: "s1"}
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, id, pid, 2); err != nil {
		t.Fatalf("first AddItem: %v", err)
	}
	c, err := svc.AddItem(ctx, id, pid, 2)
	if err != nil {
		t.Fatalf("second AddItem: %v", err)
	}
	if c.Items[0].Quantity != 4 {
		t.Fatalf("quantity = %d, want 4", c.Items[0].Quantity)
	}
}

func TestAddItemReportsTrueMaximum(t *testing.T) {
	svc, products := newTestService(t)
	pid := seedProduct(t, products, "Mascara", 90, 5)
	ctx := context.Background()

	// another session holds 2, the caller already holds 1
	if _, err := svc.AddItem(ctx, Identity{SessionID: "other"}, pid, 2); err != nil {
		t.Fatalf("other AddItem: %v", err)
	}
	id := Identity{SessionID: "s1"}
	if _, err := svc.AddItem(ctx, id, pid, 1); err != nil {
		t.Fatalf("own AddItem: %v", err)
	}

	// max addable on top of the held unit is 5 - 2 - 1 = 2
	_, err := svc.AddItem(ctx, id, pid, 3)
	oos, ok := err.(*OutOfStockError)
	if !ok {
		t.Fatalf("expected OutOfStockError, got %v", err)
	}
	if oos.Available != 2 {
		t.Fatalf("Available = %d, want 2", oos.Available)
	}
}

func TestUpdateQuantitySetsNotAdds(t *testing.T) {
	svc, products := newTestService(t)
	pid := seedProduct(t, products, "Toner", 80, 5)
	id := Identity{SessionID: "s1"}
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, id, pid, 4); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	c, err := svc.UpdateQuantity(ctx, id, pid, 2)
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if c.Items[0].Quantity != 2 {
		t.Fatalf("quantity = %d, want 2", c.Items[0].Quantity)
	}

	// caller's own reservation does not count against raising back up to stock
	c, err = svc.UpdateQuantity(ctx, id, pid, 5)
	if err != nil {
		t.Fatalf("UpdateQuantity to stock: %v", err)
	}
	if c.Items[0].Quantity != 5 {
		t.Fatalf("quantity = %d, want 5", c.Items[0].Quantity)
	}

	if _, err := svc.UpdateQuantity(ctx, id, pid, 6); err == nil {
		t.Fatal("expected out of stock error setting above stock")
	}
}

func TestUpdateQuantityZeroRemoves(t *testing.T) {
	svc, products := newTestService(t)
	pid := seedProduct(t, products, "Blush", 70, 5)
	id := Identity{SessionID: "s1"}
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, id, pid, 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	c, err := svc.UpdateQuantity(ctx, id, pid, 0)
	if err != nil {
		t.Fatalf("UpdateQuantity(0): %v", err)
	}
	if len(c.Items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(c.Items))
	}
}

func TestUpdateQuantityRequiresExistingLine(t *testing.T) {
	svc, products := newTestService(t)
	pid := seedProduct(t, products, "Primer", 60, 5)

	_, err := svc.UpdateQuantity(context.Background(), Identity{SessionID: "s1"}, pid, 2)
	if err != ErrItemNotFound {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestClearKeepsCartActive(t *testing.T) {
	svc, products := newTestService(t)
	pid := seedProduct(t, products, "Highlighter", 50, 5)
	id := Identity{SessionID: "s1"}
	ctx := context.Background()

	added, err := svc.AddItem(ctx, id, pid, 2)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.Clear(ctx, id); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	c, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.ID != added.ID {
		t.Fatalf("cart row should survive Clear: got %q want %q", c.ID, added.ID)
	}
	if c.Status != StatusActive {
		t.Fatalf("status = %q, want %q", c.Status, StatusActive)
	}
	if len(c.Items) != 0 {
		t.Fatalf("expected no items after Clear, got %d", len(c.Items))
	}
}

func TestRemoveItemReleasesStock(t *testing.T) {
	svc, products := newTestService(t)
	pid := seedProduct(t, products, "Concealer", 95, 5)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, Identity{SessionID: "s1"}, pid, 5); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.AddItem(ctx, Identity{SessionID: "s2"}, pid, 1); err == nil {
		t.Fatal("expected out of stock while s1 holds everything")
	}
	if _, err := svc.RemoveItem(ctx, Identity{SessionID: "s1"}, pid); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if _, err := svc.AddItem(ctx, Identity{SessionID: "s2"}, pid, 5); err != nil {
		t.Fatalf("AddItem after release: %v", err)
	}
}

func TestIdentityValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Get(ctx, Identity{}); err != ErrInvalidIdentity {
		t.Fatalf("empty identity: got %v", err)
	}
	if _, err := svc.Get(ctx, Identity{UserID: "u1", SessionID: "s1"}); err != ErrInvalidIdentity {
		t.Fatalf("double identity: got %v", err)
	}
}

func TestMigrateRekeysGuestCart(t *testing.T) {
	svc, products := newTestService(t)
	pid := seedProduct(t, products, "Nail Polish", 45, 5)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, Identity{SessionID: "s1"}, pid, 3); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	c, err := svc.MigrateGuestToUser(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("MigrateGuestToUser: %v", err)
	}
	if c.Type != TypeRegistered || c.UserID != "u1" {
		t.Fatalf("cart not re-keyed: %+v", c)
	}
	if len(c.Items) != 1 || c.Items[0].Quantity != 3 {
		t.Fatalf("items lost in migration: %+v", c.Items)
	}

	// guest identity no longer resolves to a cart
	g, err := svc.Get(ctx, Identity{SessionID: "s1"})
	if err != nil {
		t.Fatalf("Get guest after migrate: %v", err)
	}
	if g.ID != "" {
		t.Fatal("guest identity should be empty after migration")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	svc, products := newTestService(t)
	pid := seedProduct(t, products, "Eyeliner", 40, 5)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, Identity{SessionID: "s1"}, pid, 3); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	first, err := svc.MigrateGuestToUser(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	second, err := svc.MigrateGuestToUser(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("second migrate changed cart: %q vs %q", second.ID, first.ID)
	}
	if len(second.Items) != 1 || second.Items[0].Quantity != 3 {
		t.Fatalf("second migrate changed items: %+v", second.Items)
	}
}

func TestMigrateMergesWithExistingUserCart(t *testing.T) {
	svc, products := newTestService(t)
	shared := seedProduct(t, products, "Shampoo", 30, 5)
	only := seedProduct(t, products, "Conditioner", 35, 5)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, Identity{UserID: "u1"}, shared, 3); err != nil {
		t.Fatalf("user AddItem: %v", err)
	}
	if _, err := svc.AddItem(ctx, Identity{SessionID: "s1"}, shared, 4); err != nil {
		t.Fatalf("guest AddItem shared: %v", err)
	}
	if _, err := svc.AddItem(ctx, Identity{SessionID: "s1"}, only, 2); err != nil {
		t.Fatalf("guest AddItem only: %v", err)
	}

	c, err := svc.MigrateGuestToUser(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("MigrateGuestToUser: %v", err)
	}
	got := map[string]int{}
	for _, it := range c.Items {
		got[it.ProductID] = it.Quantity
	}
	// 3 + 4 = 7 capped at stock 5 (no one else holds any)
	if got[shared] != 5 {
		t.Fatalf("merged quantity for shared product = %d, want 5", got[shared])
	}
	if got[only] != 2 {
		t.Fatalf("quantity for guest-only product = %d, want 2", got[only])
	}
}

func TestCleanupExpiredFreesStock(t *testing.T) {
	svc, products := newTestService(t)
	pid := seedProduct(t, products, "Face Mask", 25, 5)
	id := Identity{SessionID: "s1"}
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, id, pid, 5); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	avail, err := svc.Available(ctx, pid)
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if avail != 0 {
		t.Fatalf("available = %d, want 0 while reserved", avail)
	}

	// lapse the reservation
	svc.mem.mu.Lock()
	for _, c := range svc.mem.carts {
		for _, it := range c.items {
			it.reservedUntil = time.Now().Add(-2 * time.Hour)
		}
	}
	svc.mem.mu.Unlock()

	res, err := svc.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if res.Expired != 1 {
		t.Fatalf("Expired = %d, want 1", res.Expired)
	}

	avail, err = svc.Available(ctx, pid)
	if err != nil {
		t.Fatalf("Available after sweep: %v", err)
	}
	if avail != 5 {
		t.Fatalf("available = %d, want full stock 5 after expiry", avail)
	}

	c, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after sweep: %v", err)
	}
	if c.ID != "" {
		t.Fatal("expired cart must not resolve as the active cart")
	}
}

func TestCleanupRemovesLongExpiredCarts(t *testing.T) {
	products := newTestCatalog(t)
	svc := New(nil, products, time.Hour, time.Hour)
	pid := seedProduct(t, products, "Body Lotion", 20, 5)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, Identity{SessionID: "s1"}, pid, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	svc.mem.mu.Lock()
	for _, c := range svc.mem.carts {
		for _, it := range c.items {
			it.reservedUntil = time.Now().Add(-3 * time.Hour)
		}
	}
	svc.mem.mu.Unlock()

	if _, err := svc.CleanupExpired(ctx); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	// backdate the expiry itself past the clean-after window
	svc.mem.mu.Lock()
	for _, c := range svc.mem.carts {
		c.updatedAt = time.Now().Add(-2 * time.Hour)
	}
	svc.mem.mu.Unlock()

	res, err := svc.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if res.Cleaned != 1 {
		t.Fatalf("Cleaned = %d, want 1", res.Cleaned)
	}
}

func TestReservationInvariantHolds(t *testing.T) {
	svc, products := newTestService(t)
	pid := seedProduct(t, products, "Sunscreen", 55, 5)
	ctx := context.Background()

	sessions := []string{"a", "b", "c", "d"}
	total := 0
	for i, s := range sessions {
		c, err := svc.AddItem(ctx, Identity{SessionID: s}, pid, i+1)
		if err != nil {
			if _, ok := err.(*OutOfStockError); ok {
				continue
			}
			t.Fatalf("AddItem(%s): %v", s, err)
		}
		total = 0
		_ = c
		for _, sess := range sessions {
			got, err := svc.Get(ctx, Identity{SessionID: sess})
			if err != nil {
				t.Fatalf("Get(%s): %v", sess, err)
			}
			for _, it := range got.Items {
				total += it.Quantity
			}
		}
		if total > 5 {
			t.Fatalf("reserved %d units of a 5-unit product", total)
		}
	}
}

func TestInactiveProductCannotBeAdded(t *testing.T) {
	svc, products := newTestService(t)
	pid := seedProduct(t, products, "Retired Gloss", 15, 5)
	ctx := context.Background()

	inactive := false
	if _, err := products.UpdateProduct(ctx, pid, catalog.ProductUpdate{Active: &inactive}); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if _, err := svc.AddItem(ctx, Identity{SessionID: "s1"}, pid, 1); err != ErrProductInactive {
		t.Fatalf("expected ErrProductInactive, got %v", err)
	}
}

func TestDeletedProductDropsFromCartView(t *testing.T) {
	svc, products := newTestService(t)
	ctx := context.Background()
	gone := seedProduct(t, products, "Discontinued Serum", 120, 5)
	kept := seedProduct(t, products, "Night Cream", 200, 5)
	id := Identity{SessionID: "s1"}

	for _, pid := range []string{gone, kept} {
		if _, err := svc.AddItem(ctx, id, pid, 1); err != nil {
			t.Fatalf("AddItem(%s): %v", pid, err)
		}
	}
	if err := products.DeleteProduct(ctx, gone); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}

	c, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(c.Items) != 1 || c.Items[0].ProductID != kept {
		t.Fatalf("expected only %s to survive, got %+v", kept, c.Items)
	}
}
