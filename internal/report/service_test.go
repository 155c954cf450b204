package report

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/MiriamHerrera/cosmetics-api/internal/cart"
	"github.com/MiriamHerrera/cosmetics-api/internal/catalog"
	"github.com/MiriamHerrera/cosmetics-api/internal/order"
)

type fixture struct {
	products *catalog.Service
	carts    *cart.Service
	orders   *order.Service
	reports  *Service
	loc      order.DeliveryLocation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	products := catalog.New(nil, time.Minute)
	carts := cart.New(nil, products, time.Hour, 24*time.Hour)
	orders := order.New(nil, carts, products, "", 3, 7)
	reports := New(nil, orders, products)

	loc, err := orders.CreateLocation(context.Background(), order.LocationInput{Name: "Centro"})
	require.NoError(t, err)
	for wd := 0; wd < 7; wd++ {
		_, err := orders.CreateSlot(context.Background(), order.SlotInput{LocationID: loc.ID, Weekday: wd, Slot: "10:00-12:00"})
		require.NoError(t, err)
	}
	return &fixture{products: products, carts: carts, orders: orders, reports: reports, loc: loc}
}

func (f *fixture) placeOrder(t *testing.T, session, productID string, qty int) order.Receipt {
	t.Helper()
	ctx := context.Background()
	id := cart.Identity{SessionID: session}
	_, err := f.carts.AddItem(ctx, id, productID, qty)
	require.NoError(t, err)
	receipt, err := f.orders.Create(ctx, id, order.CreateInput{
		CustomerName:       "Ana",
		CustomerPhone:      "5512345678",
		DeliveryLocationID: f.loc.ID,
		DeliveryDate:       time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02"),
		DeliverySlot:       "10:00-12:00",
	})
	require.NoError(t, err)
	return receipt
}

func dateRange() (string, string) {
	today := time.Now().UTC().Format("2006-01-02")
	return today, today
}

func TestSalesSummary(t *testing.T) {
	f := newFixture(t)
	lip := f.createProduct(t, "Lipstick", 100, 20)
	mask := f.createProduct(t, "Mask", 50, 20)

	f.placeOrder(t, "s1", lip, 2)
	f.placeOrder(t, "s2", mask, 4)

	from, to := dateRange()
	sum, err := f.reports.Sales(context.Background(), from, to)
	require.NoError(t, err)
	require.Equal(t, 2, sum.Orders)
	require.Equal(t, 6, sum.Units)
	require.True(t, sum.Revenue.Equal(decimal.NewFromInt(400)), "revenue = %s", sum.Revenue)
}

func TestSalesExcludesCancelled(t *testing.T) {
	f := newFixture(t)
	lip := f.createProduct(t, "Lipstick", 100, 20)

	keep := f.placeOrder(t, "s1", lip, 1)
	drop := f.placeOrder(t, "s2", lip, 5)
	_, err := f.orders.UpdateStatus(context.Background(), drop.Order.ID, order.StatusCancelled)
	require.NoError(t, err)
	_ = keep

	from, to := dateRange()
	sum, err := f.reports.Sales(context.Background(), from, to)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Orders)
	require.Equal(t, 1, sum.Units)
	require.True(t, sum.Revenue.Equal(decimal.NewFromInt(100)))
}

func TestSalesValidatesRange(t *testing.T) {
	f := newFixture(t)
	_, err := f.reports.Sales(context.Background(), "not-a-date", "2026-01-01")
	require.Error(t, err)
	_, err = f.reports.Sales(context.Background(), "2026-02-01", "2026-01-01")
	require.Error(t, err)
}

func TestTopProducts(t *testing.T) {
	f := newFixture(t)
	lip := f.createProduct(t, "Lipstick", 100, 20)
	mask := f.createProduct(t, "Mask", 50, 20)

	f.placeOrder(t, "s1", mask, 5)
	f.placeOrder(t, "s2", lip, 2)

	top, err := f.reports.TopProducts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "Mask", top[0].ProductName)
	require.Equal(t, 5, top[0].Units)
	require.Equal(t, "Lipstick", top[1].ProductName)
}

func TestLowStock(t *testing.T) {
	f := newFixture(t)
	f.createProduct(t, "Plenty", 10, 50)
	low := f.createProduct(t, "Scarce", 10, 2)

	ctx := context.Background()
	items, err := f.reports.LowStock(ctx, 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, low, items[0].ProductID)
	require.Equal(t, 2, items[0].StockTotal)
}

func (f *fixture) createProduct(t *testing.T, name string, price int64, stock int) string {
	t.Helper()
	p, err := f.products.CreateProduct(context.Background(), catalog.ProductInput{
		Name:       name,
		Price:      decimal.NewFromInt(price),
		StockTotal: stock,
	})
	require.NoError(t, err)
	return p.ID
}
