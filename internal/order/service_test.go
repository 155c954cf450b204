package order

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MiriamHerrera/cosmetics-api/internal/cart"
	"github.com/MiriamHerrera/cosmetics-api/internal/catalog"
)

type fixture struct {
	products *catalog.Service
	carts    *cart.Service
	orders   *Service
	loc      DeliveryLocation
}

// newFixture wires memory-mode services with one location open every weekday
// at "10:00-12:00", a 3-day guest horizon and a 7-day user horizon.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	products := catalog.New(nil, time.Minute)
	carts := cart.New(nil, products, time.Hour, 24*time.Hour)
	orders := New(nil, carts, products, "5215512345678", 3, 7)

	loc, err := orders.CreateLocation(context.Background(), LocationInput{Name: "Centro", Address: "Av. Principal 1"})
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	for wd := 0; wd < 7; wd++ {
		if _, err := orders.CreateSlot(context.Background(), SlotInput{LocationID: loc.ID, Weekday: wd, Slot: "10:00-12:00"}); err != nil {
			t.Fatalf("CreateSlot(%d): %v", wd, err)
		}
	}
	return &fixture{products: products, carts: carts, orders: orders, loc: loc}
}

func (f *fixture) seedProduct(t *testing.T, name string, price int64, stock int) string {
	t.Helper()
	p, err := f.products.CreateProduct(context.Background(), catalog.ProductInput{
		Name:       name,
		Price:      decimal.NewFromInt(price),
		StockTotal: stock,
	})
	if err != nil {
		t.Fatalf("CreateProduct(%s): %v", name, err)
	}
	return p.ID
}

func (f *fixture) createInput(daysAhead int) CreateInput {
	return CreateInput{
		CustomerName:       "Ana",
		CustomerPhone:      "5512345678",
		DeliveryLocationID: f.loc.ID,
		DeliveryDate:       time.Now().UTC().AddDate(0, 0, daysAhead).Format("2006-01-02"),
		DeliverySlot:       "10:00-12:00",
	}
}

func TestCreateOrderDecrementsStockAndClearsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.seedProduct(t, "Lipstick", 150, 5)
	id := cart.Identity{SessionID: "s1"}

	if _, err := f.carts.AddItem(ctx, id, pid, 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	receipt, err := f.orders.Create(ctx, id, f.createInput(1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if receipt.Order.Status != StatusPending {
		t.Fatalf("status = %q, want %q", receipt.Order.Status, StatusPending)
	}
	if !receipt.Order.Total.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("total = %s, want 300", receipt.Order.Total)
	}

	p, err := f.products.GetProduct(ctx, pid)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if p.StockTotal != 3 {
		t.Fatalf("stock = %d, want 3 after selling 2", p.StockTotal)
	}

	c, err := f.carts.Get(ctx, id)
	if err != nil {
		t.Fatalf("cart Get: %v", err)
	}
	if len(c.Items) != 0 {
		t.Fatalf("cart should be empty after checkout, has %d items", len(c.Items))
	}
}

func TestCreateOrderCopiesPriceAtPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.seedProduct(t, "Serum", 200, 5)
	id := cart.Identity{SessionID: "s1"}

	if _, err := f.carts.AddItem(ctx, id, pid, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	receipt, err := f.orders.Create(ctx, id, f.createInput(1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newPrice := decimal.NewFromInt(999)
	if _, err := f.products.UpdateProduct(ctx, pid, catalog.ProductUpdate{Price: &newPrice}); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	got, err := f.orders.Get(ctx, receipt.Order.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Items[0].UnitPrice.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("order line price = %s, want the price at purchase 200", got.Items[0].UnitPrice)
	}
}

func TestCreateOrderIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ok := f.seedProduct(t, "Toner", 80, 5)
	scarce := f.seedProduct(t, "Limited Palette", 300, 5)
	id := cart.Identity{SessionID: "s1"}

	if _, err := f.carts.AddItem(ctx, id, ok, 2); err != nil {
		t.Fatalf("AddItem ok: %v", err)
	}
	if _, err := f.carts.AddItem(ctx, id, scarce, 3); err != nil {
		t.Fatalf("AddItem scarce: %v", err)
	}
	// stock drops under the cart line between snapshot and commit
	if err := f.products.AdjustStock(ctx, scarce, -4); err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}

	_, err := f.orders.Create(ctx, id, f.createInput(1))
	var chk *CheckoutError
	if !errors.As(err, &chk) {
		t.Fatalf("expected CheckoutError, got %v", err)
	}
	if len(chk.Problems) != 1 || !strings.Contains(chk.Problems[0], "Limited Palette") {
		t.Fatalf("unexpected problems: %v", chk.Problems)
	}

	// nothing was committed: untouched stock, cart intact, no order stored
	p, _ := f.products.GetProduct(ctx, ok)
	if p.StockTotal != 5 {
		t.Fatalf("healthy product stock = %d, want untouched 5", p.StockTotal)
	}
	c, _ := f.carts.Get(ctx, id)
	if len(c.Items) != 2 {
		t.Fatalf("cart should survive a failed checkout, has %d items", len(c.Items))
	}
	res, err := f.orders.List(ctx, "", "", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(res.Items) != 0 {
		t.Fatalf("no order should persist, found %d", len(res.Items))
	}
}

func TestCreateOrderEmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.orders.Create(context.Background(), cart.Identity{SessionID: "s1"}, f.createInput(1))
	if !errors.Is(err, ErrCartEmpty) {
		t.Fatalf("expected ErrCartEmpty, got %v", err)
	}
}

func TestHorizonGuestVersusRegistered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.seedProduct(t, "Cream", 60, 10)

	guest := cart.Identity{SessionID: "s1"}
	if _, err := f.carts.AddItem(ctx, guest, pid, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := f.orders.Create(ctx, guest, f.createInput(5)); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("guest 5 days out: expected ErrSlotUnavailable, got %v", err)
	}

	user := cart.Identity{UserID: "u1"}
	if _, err := f.carts.AddItem(ctx, user, pid, 1); err != nil {
		t.Fatalf("AddItem user: %v", err)
	}
	if _, err := f.orders.Create(ctx, user, f.createInput(5)); err != nil {
		t.Fatalf("registered 5 days out should pass, got %v", err)
	}
}

func TestPastDateRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.seedProduct(t, "Oil", 40, 5)
	id := cart.Identity{SessionID: "s1"}

	if _, err := f.carts.AddItem(ctx, id, pid, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := f.orders.Create(ctx, id, f.createInput(-1)); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable for past date, got %v", err)
	}
}

func TestUnknownSlotRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.seedProduct(t, "Gel", 30, 5)
	id := cart.Identity{SessionID: "s1"}

	if _, err := f.carts.AddItem(ctx, id, pid, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	in := f.createInput(1)
	in.DeliverySlot = "23:00-23:30"
	if _, err := f.orders.Create(ctx, id, in); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestWhatsAppHandoff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.seedProduct(t, "Lip Balm", 55, 5)
	id := cart.Identity{SessionID: "s1"}

	if _, err := f.carts.AddItem(ctx, id, pid, 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	receipt, err := f.orders.Create(ctx, id, f.createInput(1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, want := range []string{"Nuevo pedido", "Centro", "Ana", "- 2x Lip Balm: $110.00"} {
		if !strings.Contains(receipt.Message, want) {
			t.Fatalf("message missing %q:\n%s", want, receipt.Message)
		}
	}
	if !strings.HasPrefix(receipt.WhatsAppLink, "https://wa.me/5215512345678?text=") {
		t.Fatalf("unexpected link: %s", receipt.WhatsAppLink)
	}
	if strings.Contains(receipt.WhatsAppLink, " ") {
		t.Fatal("link must be url-encoded")
	}
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.seedProduct(t, "Powder", 85, 5)
	id := cart.Identity{SessionID: "s1"}

	if _, err := f.carts.AddItem(ctx, id, pid, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	receipt, err := f.orders.Create(ctx, id, f.createInput(1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	oid := receipt.Order.ID

	if _, err := f.orders.UpdateStatus(ctx, oid, StatusDelivered); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("pending->delivered should fail, got %v", err)
	}
	if _, err := f.orders.UpdateStatus(ctx, oid, StatusConfirmed); err != nil {
		t.Fatalf("pending->confirmed: %v", err)
	}
	if _, err := f.orders.UpdateStatus(ctx, oid, StatusDelivered); err != nil {
		t.Fatalf("confirmed->delivered: %v", err)
	}
	if _, err := f.orders.UpdateStatus(ctx, oid, StatusCancelled); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("delivered->cancelled should fail, got %v", err)
	}
}

func TestCancellationRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.seedProduct(t, "Foundation", 220, 5)
	id := cart.Identity{SessionID: "s1"}

	if _, err := f.carts.AddItem(ctx, id, pid, 3); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	receipt, err := f.orders.Create(ctx, id, f.createInput(1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	p, _ := f.products.GetProduct(ctx, pid)
	if p.StockTotal != 2 {
		t.Fatalf("stock = %d, want 2 after sale", p.StockTotal)
	}

	if _, err := f.orders.UpdateStatus(ctx, receipt.Order.ID, StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	p, _ = f.products.GetProduct(ctx, pid)
	if p.StockTotal != 5 {
		t.Fatalf("stock = %d, want 5 restored after cancellation", p.StockTotal)
	}
}

func TestSlotsForDateHonorsHorizon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inRange := time.Now().UTC().AddDate(0, 0, 2).Format("2006-01-02")
	outOfRange := time.Now().UTC().AddDate(0, 0, 5).Format("2006-01-02")

	slots, err := f.orders.SlotsForDate(ctx, f.loc.ID, inRange, false)
	if err != nil {
		t.Fatalf("SlotsForDate in range: %v", err)
	}
	if len(slots) != 1 || slots[0] != "10:00-12:00" {
		t.Fatalf("unexpected slots: %v", slots)
	}

	slots, err = f.orders.SlotsForDate(ctx, f.loc.ID, outOfRange, false)
	if err != nil {
		t.Fatalf("SlotsForDate out of range: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("guest should see no slots 5 days out, got %v", slots)
	}

	slots, err = f.orders.SlotsForDate(ctx, f.loc.ID, outOfRange, true)
	if err != nil {
		t.Fatalf("SlotsForDate registered: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("registered should see slots 5 days out, got %v", slots)
	}
}

func TestListByUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.seedProduct(t, "Mist", 65, 10)
	user := cart.Identity{UserID: "u1"}

	for i := 0; i < 2; i++ {
		if _, err := f.carts.AddItem(ctx, user, pid, 1); err != nil {
			t.Fatalf("AddItem: %v", err)
		}
		if _, err := f.orders.Create(ctx, user, f.createInput(1)); err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
	}
	orders, err := f.orders.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("got %d orders, want 2", len(orders))
	}
}

func TestListSlotsOrdersByWeekdayAndWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.orders.CreateSlot(ctx, SlotInput{LocationID: f.loc.ID, Weekday: 1, Slot: "16:00-18:00"}); err != nil {
		t.Fatalf("CreateSlot: %v", err)
	}

	slots, err := f.orders.ListSlots(ctx, f.loc.ID)
	if err != nil {
		t.Fatalf("ListSlots: %v", err)
	}
	if len(slots) != 8 {
		t.Fatalf("got %d slots, want 8", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		prev, cur := slots[i-1], slots[i]
		if cur.Weekday < prev.Weekday || (cur.Weekday == prev.Weekday && cur.Slot < prev.Slot) {
			t.Fatalf("slots out of order at %d: %+v then %+v", i, prev, cur)
		}
	}

	if _, err := f.orders.ListSlots(ctx, "loc_missing"); !errors.Is(err, ErrLocationNotFound) {
		t.Fatalf("unknown location: got %v, want ErrLocationNotFound", err)
	}
}

func TestDuplicateSlotRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.orders.CreateSlot(context.Background(), SlotInput{LocationID: f.loc.ID, Weekday: 1, Slot: "10:00-12:00"})
	if err == nil {
		t.Fatal("expected duplicate slot error")
	}
}
