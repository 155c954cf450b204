// Package report computes the admin dashboard aggregates.
package report

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MiriamHerrera/cosmetics-api/internal/apperr"
	"github.com/MiriamHerrera/cosmetics-api/internal/catalog"
	"github.com/MiriamHerrera/cosmetics-api/internal/order"
)

type Service struct {
	db       *sql.DB
	orders   *order.Service
	products *catalog.Service
}

// New builds the report service. A nil db means the aggregates are computed
// by walking the memory-mode order and catalog stores.
func New(db *sql.DB, orders *order.Service, products *catalog.Service) *Service {
	return &Service{db: db, orders: orders, products: products}
}

// SalesSummary covers non-cancelled orders created in [from, to].
type SalesSummary struct {
	From    string          `json:"from"`
	To      string          `json:"to"`
	Orders  int             `json:"orders"`
	Units   int             `json:"units"`
	Revenue decimal.Decimal `json:"revenue"`
}

const dateLayout = "2006-01-02"

func parseRange(from, to string) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, from)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Invalid("invalid from date, want YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, to)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Invalid("invalid to date, want YYYY-MM-DD")
	}
	end = end.AddDate(0, 0, 1) // inclusive upper bound
	if end.Before(start) {
		return time.Time{}, time.Time{}, apperr.Invalid("to must not precede from")
	}
	return start, end, nil
}

func (s *Service) Sales(ctx context.Context, from, to string) (SalesSummary, error) {
	start, end, err := parseRange(from, to)
	if err != nil {
		return SalesSummary{}, err
	}
	out := SalesSummary{From: from, To: to, Revenue: decimal.Zero}

	if s.db == nil {
		orders, err := s.allOrders(ctx)
		if err != nil {
			return SalesSummary{}, err
		}
		for _, o := range orders {
			if o.Status == order.StatusCancelled || o.CreatedAt.Before(start) || !o.CreatedAt.Before(end) {
				continue
			}
			out.Orders++
			out.Revenue = out.Revenue.Add(o.Total)
			for _, it := range o.Items {
				out.Units += it.Quantity
			}
		}
		return out, nil
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT o.id), COALESCE(SUM(oi.quantity), 0), COALESCE(SUM(oi.unit_price * oi.quantity), 0)
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE o.status <> 'cancelled' AND o.created_at >= $1 AND o.created_at < $2`,
		start, end).Scan(&out.Orders, &out.Units, &out.Revenue)
	if err != nil {
		return SalesSummary{}, err
	}
	return out, nil
}

// TopProduct ranks products by units sold across non-cancelled orders.
type TopProduct struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Units       int             `json:"units"`
	Revenue     decimal.Decimal `json:"revenue"`
}

func (s *Service) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	if limit <= 0 {
		limit = 10
	}

	if s.db == nil {
		orders, err := s.allOrders(ctx)
		if err != nil {
			return nil, err
		}
		byProduct := map[string]*TopProduct{}
		for _, o := range orders {
			if o.Status == order.StatusCancelled {
				continue
			}
			for _, it := range o.Items {
				tp := byProduct[it.ProductID]
				if tp == nil {
					tp = &TopProduct{ProductID: it.ProductID, ProductName: it.ProductName, Revenue: decimal.Zero}
					byProduct[it.ProductID] = tp
				}
				tp.Units += it.Quantity
				tp.Revenue = tp.Revenue.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
			}
		}
		out := make([]TopProduct, 0, len(byProduct))
		for _, tp := range byProduct {
			out = append(out, *tp)
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Units == out[j].Units {
				return out[i].ProductName < out[j].ProductName
			}
			return out[i].Units > out[j].Units
		})
		if len(out) > limit {
			out = out[:limit]
		}
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT oi.product_id, oi.product_name, SUM(oi.quantity), SUM(oi.unit_price * oi.quantity)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.status <> 'cancelled'
		GROUP BY oi.product_id, oi.product_name
		ORDER BY SUM(oi.quantity) DESC, oi.product_name
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TopProduct
	for rows.Next() {
		var tp TopProduct
		if err := rows.Scan(&tp.ProductID, &tp.ProductName, &tp.Units, &tp.Revenue); err != nil {
			return nil, err
		}
		out = append(out, tp)
	}
	return out, rows.Err()
}

// LowStockProduct is an active product at or below the threshold.
type LowStockProduct struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	StockTotal int    `json:"stock_total"`
}

func (s *Service) LowStock(ctx context.Context, threshold int) ([]LowStockProduct, error) {
	if threshold < 0 {
		threshold = 0
	}

	if s.db == nil {
		out := []LowStockProduct{}
		cursor := ""
		for {
			page, err := s.products.ListProducts(ctx, catalog.ListFilter{ActiveOnly: true, Cursor: cursor, Limit: 200})
			if err != nil {
				return nil, err
			}
			for _, p := range page.Items {
				if p.StockTotal <= threshold {
					out = append(out, LowStockProduct{ProductID: p.ID, Name: p.Name, StockTotal: p.StockTotal})
				}
			}
			if page.NextCursor == "" {
				break
			}
			cursor = page.NextCursor
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].StockTotal == out[j].StockTotal {
				return out[i].Name < out[j].Name
			}
			return out[i].StockTotal < out[j].StockTotal
		})
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, stock_total FROM products
		WHERE active AND stock_total <= $1
		ORDER BY stock_total, name`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LowStockProduct{}
	for rows.Next() {
		var p LowStockProduct
		if err := rows.Scan(&p.ProductID, &p.Name, &p.StockTotal); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Service) allOrders(ctx context.Context) ([]order.Order, error) {
	var out []order.Order
	cursor := ""
	for {
		page, err := s.orders.List(ctx, "", cursor, 200)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return out, nil
}
