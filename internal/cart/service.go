package cart

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/MiriamHerrera/cosmetics-api/internal/catalog"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Service struct {
	db         *sql.DB
	products   *catalog.Service
	ttl        time.Duration
	cleanAfter time.Duration

	mem *memState
}

// New builds the cart service. A nil db means memory mode; products is the
// catalog the cart joins against for prices, names and stock.
func New(db *sql.DB, products *catalog.Service, reservationTTL, cleanAfter time.Duration) *Service {
	return &Service{
		db:         db,
		products:   products,
		ttl:        reservationTTL,
		cleanAfter: cleanAfter,
		mem:        newMemState(),
	}
}

// Get returns the identity's active cart joined with live product data.
// If no active cart exists an empty cart shape is returned, no row created.
func (s *Service) Get(ctx context.Context, id Identity) (Cart, error) {
	if err := id.Validate(); err != nil {
		return Cart{}, err
	}
	if s.db == nil {
		return s.memGet(ctx, id)
	}
	c, err := s.activeCart(ctx, s.db, id, false)
	if errors.Is(err, sql.ErrNoRows) {
		return emptyCart(id), nil
	}
	if err != nil {
		return Cart{}, err
	}
	c.Items, err = s.itemsOf(ctx, s.db, c.ID)
	if err != nil {
		return Cart{}, err
	}
	c.Total = totalOf(c.Items)
	return c, nil
}

// Available reports how many units of a product are not held by unexpired
// reservations in active carts. Used by product reads and order creation.
func (s *Service) Available(ctx context.Context, productID string) (int, error) {
	if s.db == nil {
		return s.memAvailable(ctx, productID, "")
	}
	var available int
	err := s.db.QueryRowContext(ctx, `
		SELECT p.stock_total - COALESCE((
			SELECT SUM(ci.quantity)
			FROM cart_items ci
			JOIN carts c ON c.id = ci.cart_id
			WHERE ci.product_id = p.id AND c.status = 'active' AND ci.reserved_until > $2
		), 0)
		FROM products p WHERE p.id = $1`, productID, time.Now().UTC()).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, err
	}
	if available < 0 {
		available = 0
	}
	return available, nil
}

// ---------------------------------------------------------------------------
// SQL helpers
// ---------------------------------------------------------------------------

func (s *Service) activeCart(ctx context.Context, q dbtx, id Identity, forUpdate bool) (Cart, error) {
	query := `SELECT id, user_id, session_id, cart_type, status, created_at, updated_at
		FROM carts WHERE status = 'active' AND `
	var arg string
	if id.UserID != "" {
		query += `user_id = $1`
		arg = id.UserID
	} else {
		query += `session_id = $1`
		arg = id.SessionID
	}
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var c Cart
	var userID, sessionID sql.NullString
	err := q.QueryRowContext(ctx, query, arg).Scan(&c.ID, &userID, &sessionID, &c.Type, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Cart{}, err
	}
	c.UserID = userID.String
	c.SessionID = sessionID.String
	return c, nil
}

func (s *Service) itemsOf(ctx context.Context, q dbtx, cartID string) ([]Item, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT ci.product_id, p.name, p.image_url, p.price, p.stock_total, ci.quantity, ci.reserved_until
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.product_id`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var it Item
		var img sql.NullString
		if err := rows.Scan(&it.ProductID, &it.Name, &img, &it.UnitPrice, &it.StockTotal, &it.Quantity, &it.ReservedUntil); err != nil {
			return nil, err
		}
		it.ImageURL = img.String
		it.Subtotal = it.UnitPrice.Mul(decimalFromInt(it.Quantity))
		items = append(items, it)
	}
	return items, rows.Err()
}

// reservedByOthers sums unexpired reservations in active carts other than
// excludeCartID. Callers hold the product row lock.
func (s *Service) reservedByOthers(ctx context.Context, q dbtx, productID string, excludeCartIDs []string, now time.Time) (int, error) {
	query := `
		SELECT COALESCE(SUM(ci.quantity), 0)
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		WHERE ci.product_id = $1 AND c.status = 'active' AND ci.reserved_until > $2`
	args := []any{productID, now}
	for i, id := range excludeCartIDs {
		query += ` AND ci.cart_id <> $` + strconv.Itoa(3+i)
		args = append(args, id)
	}
	var sum int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// lockProduct takes the row lock that serializes availability checks with
// concurrent cart writes and order commits for the same product.
func (s *Service) lockProduct(ctx context.Context, q dbtx, productID string) (stock int, err error) {
	var active bool
	err = q.QueryRowContext(ctx,
		`SELECT stock_total, active FROM products WHERE id = $1 FOR UPDATE`, productID).
		Scan(&stock, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, err
	}
	if !active {
		return 0, ErrProductInactive
	}
	return stock, nil
}
