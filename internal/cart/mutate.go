package cart

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MiriamHerrera/cosmetics-api/internal/apperr"
)

// AddItem creates or increments a cart line after checking availability under
// the product row lock, and refreshes the line's reservation TTL.
func (s *Service) AddItem(ctx context.Context, id Identity, productID string, qty int) (Cart, error) {
	if err := id.Validate(); err != nil {
		return Cart{}, err
	}
	if qty < 1 {
		return Cart{}, apperr.Invalid("quantity must be at least 1")
	}
	if s.db == nil {
		return s.memAddItem(ctx, id, productID, qty)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Cart{}, err
	}
	defer tx.Rollback()

	// cart row before product row, the same order the migration merge uses
	cartID, err := s.findOrCreateCartTx(ctx, tx, id)
	if err != nil {
		return Cart{}, err
	}
	stock, err := s.lockProduct(ctx, tx, productID)
	if err != nil {
		return Cart{}, err
	}
	now := time.Now().UTC()
	others, err := s.reservedByOthers(ctx, tx, productID, []string{cartID}, now)
	if err != nil {
		return Cart{}, err
	}
	own, err := ownQuantity(ctx, tx, cartID, productID)
	if err != nil {
		return Cart{}, err
	}
	available := stock - others
	if own+qty > available {
		return Cart{}, &OutOfStockError{ProductID: productID, Requested: qty, Available: maxInt(0, available-own)}
	}

	if err := upsertItem(ctx, tx, cartID, productID, own+qty, now.Add(s.ttl), now); err != nil {
		return Cart{}, err
	}
	if err := touchCart(ctx, tx, cartID, now); err != nil {
		return Cart{}, err
	}
	if err := tx.Commit(); err != nil {
		return Cart{}, err
	}
	return s.Get(ctx, id)
}

// UpdateQuantity sets a line's quantity. Zero means removal; any other value
// is re-validated against availability exactly like AddItem.
func (s *Service) UpdateQuantity(ctx context.Context, id Identity, productID string, qty int) (Cart, error) {
	if err := id.Validate(); err != nil {
		return Cart{}, err
	}
	if qty < 0 {
		return Cart{}, apperr.Invalid("quantity must not be negative")
	}
	if qty == 0 {
		return s.RemoveItem(ctx, id, productID)
	}
	if s.db == nil {
		return s.memUpdateQuantity(ctx, id, productID, qty)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Cart{}, err
	}
	defer tx.Rollback()

	c, err := s.activeCart(ctx, tx, id, true)
	if errors.Is(err, sql.ErrNoRows) {
		return Cart{}, ErrItemNotFound
	}
	if err != nil {
		return Cart{}, err
	}
	stock, err := s.lockProduct(ctx, tx, productID)
	if err != nil {
		return Cart{}, err
	}
	own, err := ownQuantity(ctx, tx, c.ID, productID)
	if err != nil {
		return Cart{}, err
	}
	if own == 0 {
		return Cart{}, ErrItemNotFound
	}
	now := time.Now().UTC()
	others, err := s.reservedByOthers(ctx, tx, productID, []string{c.ID}, now)
	if err != nil {
		return Cart{}, err
	}
	available := stock - others
	if qty > available {
		return Cart{}, &OutOfStockError{ProductID: productID, Requested: qty, Available: maxInt(0, available)}
	}

	if err := upsertItem(ctx, tx, c.ID, productID, qty, now.Add(s.ttl), now); err != nil {
		return Cart{}, err
	}
	if err := touchCart(ctx, tx, c.ID, now); err != nil {
		return Cart{}, err
	}
	if err := tx.Commit(); err != nil {
		return Cart{}, err
	}
	return s.Get(ctx, id)
}

// RemoveItem deletes a cart line. Stock is released implicitly: availability
// checks simply stop counting it.
func (s *Service) RemoveItem(ctx context.Context, id Identity, productID string) (Cart, error) {
	if err := id.Validate(); err != nil {
		return Cart{}, err
	}
	if s.db == nil {
		return s.memRemoveItem(ctx, id, productID)
	}

	c, err := s.activeCart(ctx, s.db, id, false)
	if errors.Is(err, sql.ErrNoRows) {
		return Cart{}, ErrItemNotFound
	}
	if err != nil {
		return Cart{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, c.ID, productID)
	if err != nil {
		return Cart{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Cart{}, ErrItemNotFound
	}
	if err := touchCart(ctx, s.db, c.ID, time.Now().UTC()); err != nil {
		return Cart{}, err
	}
	return s.Get(ctx, id)
}

// Clear deletes every line but keeps the cart row active so the key mapping
// survives mid-checkout. Clearing an absent cart is a no-op.
func (s *Service) Clear(ctx context.Context, id Identity) (Cart, error) {
	if err := id.Validate(); err != nil {
		return Cart{}, err
	}
	if s.db == nil {
		return s.memClear(ctx, id)
	}

	c, err := s.activeCart(ctx, s.db, id, false)
	if errors.Is(err, sql.ErrNoRows) {
		return emptyCart(id), nil
	}
	if err != nil {
		return Cart{}, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, c.ID); err != nil {
		return Cart{}, err
	}
	if err := touchCart(ctx, s.db, c.ID, time.Now().UTC()); err != nil {
		return Cart{}, err
	}
	return s.Get(ctx, id)
}

// ---------------------------------------------------------------------------
// Transaction helpers
// ---------------------------------------------------------------------------

func (s *Service) findOrCreateCartTx(ctx context.Context, tx dbtx, id Identity) (string, error) {
	c, err := s.activeCart(ctx, tx, id, true)
	if err == nil {
		return c.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	now := time.Now().UTC()
	cartID := "crt_" + uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO carts (id, user_id, session_id, cart_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'active', $5, $5)`,
		cartID, nullable(id.UserID), nullable(id.SessionID), id.cartType(), now)
	if err != nil {
		return "", err
	}
	return cartID, nil
}

func ownQuantity(ctx context.Context, q dbtx, cartID, productID string) (int, error) {
	var qty int
	err := q.QueryRowContext(ctx,
		`SELECT quantity FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return qty, err
}

func upsertItem(ctx context.Context, q dbtx, cartID, productID string, qty int, reservedUntil, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, reserved_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, reserved_until = EXCLUDED.reserved_until, updated_at = EXCLUDED.updated_at`,
		"cti_"+uuid.NewString(), cartID, productID, qty, reservedUntil, now)
	return err
}

func touchCart(ctx context.Context, q dbtx, cartID string, now time.Time) error {
	_, err := q.ExecContext(ctx, `UPDATE carts SET updated_at = $1 WHERE id = $2`, now, cartID)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
