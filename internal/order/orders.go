package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MiriamHerrera/cosmetics-api/internal/apperr"
	"github.com/MiriamHerrera/cosmetics-api/internal/catalog"
	"github.com/MiriamHerrera/cosmetics-api/internal/keyset"
)

type ListResult struct {
	Items      []Order `json:"items"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

// Get returns one order with its lines.
func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	if s.db == nil {
		s.memMu.RLock()
		o, ok := s.memOrders[id]
		s.memMu.RUnlock()
		if !ok {
			return Order{}, ErrOrderNotFound
		}
		return o, nil
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, session_id, customer_name, customer_phone, customer_email,
			delivery_location_id, delivery_date, delivery_slot, status, total, created_at, updated_at
		FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Items, err = s.itemsOf(ctx, o.ID)
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

// ListByUser returns a user's orders newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	if s.db == nil {
		s.memMu.RLock()
		var out []Order
		for _, o := range s.memOrders {
			if o.UserID == userID {
				out = append(out, o)
			}
		}
		s.memMu.RUnlock()
		sortOrders(out)
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, session_id, customer_name, customer_phone, customer_email,
			delivery_location_id, delivery_date, delivery_slot, status, total, created_at, updated_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// List pages through all orders, optionally filtered by status. Admin surface.
func (s *Service) List(ctx context.Context, status, cursor string, limit int) (ListResult, error) {
	if status != "" && !validStatus(status) {
		return ListResult{}, apperr.Invalid("invalid status filter")
	}
	if limit <= 0 {
		limit = 50
	}

	if s.db == nil {
		s.memMu.RLock()
		items := make([]Order, 0, len(s.memOrders))
		for _, o := range s.memOrders {
			if status != "" && o.Status != status {
				continue
			}
			items = append(items, o)
		}
		s.memMu.RUnlock()
		sortOrders(items)
		if cursor != "" {
			cursorTime, cursorID, err := keyset.Decode(cursor)
			if err != nil {
				return ListResult{}, err
			}
			filtered := items[:0]
			for _, o := range items {
				if o.CreatedAt.Before(cursorTime) || (o.CreatedAt.Equal(cursorTime) && o.ID < cursorID) {
					filtered = append(filtered, o)
				}
			}
			items = filtered
		}
		return pageOrders(items, limit), nil
	}

	cursorTime, cursorID, err := keyset.Decode(cursor)
	if err != nil {
		return ListResult{}, err
	}
	where := []string{"TRUE"}
	args := []any{}
	next := 1
	if status != "" {
		where = append(where, fmt.Sprintf("status = $%d", next))
		args = append(args, status)
		next++
	}
	if !cursorTime.IsZero() {
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", next, next+1))
		args = append(args, cursorTime, cursorID)
		next += 2
	}
	args = append(args, limit+1)
	q := fmt.Sprintf(`
		SELECT id, user_id, session_id, customer_name, customer_phone, customer_email,
			delivery_location_id, delivery_date, delivery_slot, status, total, created_at, updated_at
		FROM orders WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`, strings.Join(where, " AND "), next)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return ListResult{}, err
	}
	defer rows.Close()
	items := make([]Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return ListResult{}, err
		}
		items = append(items, o)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, err
	}
	return pageOrders(items, limit), nil
}

// UpdateStatus moves an order along pending → confirmed → delivered.
// Cancelling puts the ordered units back into stock.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (Order, error) {
	if !validStatus(status) {
		return Order{}, apperr.Invalid("invalid status")
	}
	o, err := s.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !allowedTransition(o.Status, status) {
		return Order{}, ErrBadTransition
	}
	now := time.Now().UTC()

	if s.db == nil {
		if status == StatusCancelled {
			for _, it := range o.Items {
				if err := s.products.AdjustStock(ctx, it.ProductID, it.Quantity); err != nil && !errors.Is(err, catalog.ErrNotFound) {
					return Order{}, err
				}
			}
		}
		s.memMu.Lock()
		o.Status = status
		o.UpdatedAt = now
		s.memOrders[id] = o
		s.memMu.Unlock()
		return o, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		status, now, id, o.Status)
	if err != nil {
		return Order{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Order{}, ErrBadTransition
	}
	if status == StatusCancelled {
		// products deleted since the order shipped nothing back; skip them
		if _, err := tx.ExecContext(ctx, `
			UPDATE products p SET stock_total = p.stock_total + oi.quantity, updated_at = $1
			FROM order_items oi
			WHERE oi.order_id = $2 AND oi.product_id = p.id`, now, id); err != nil {
			return Order{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return Order{}, err
	}
	o.Status = status
	o.UpdatedAt = now
	return o, nil
}

// ---------------------------------------------------------------------------
// Scan helpers
// ---------------------------------------------------------------------------

func (s *Service) itemsOf(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, product_name, unit_price, quantity
		FROM order_items WHERE order_id = $1 ORDER BY product_name`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var o Order
	var userID, sessionID, email sql.NullString
	var date time.Time
	err := row.Scan(&o.ID, &userID, &sessionID, &o.CustomerName, &o.CustomerPhone, &email,
		&o.DeliveryLocationID, &date, &o.DeliverySlot, &o.Status, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	o.UserID = userID.String
	o.SessionID = sessionID.String
	o.CustomerEmail = email.String
	o.DeliveryDate = date.Format(dateLayout)
	return o, nil
}

func sortOrders(orders []Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func pageOrders(items []Order, limit int) ListResult {
	res := ListResult{Items: items}
	if len(items) > limit {
		last := items[limit-1]
		res.Items = items[:limit]
		res.NextCursor = keyset.Encode(last.CreatedAt, last.ID)
	}
	return res
}
