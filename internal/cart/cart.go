// Package cart implements the unified guest/registered shopping cart with
// TTL stock reservations and guest-to-user migration.
package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusCleaned = "cleaned"

	TypeGuest      = "guest"
	TypeRegistered = "registered"
)

var (
	ErrInvalidIdentity = errors.New("exactly one of user_id or session_id must be set")
	ErrProductNotFound = errors.New("product not found")
	ErrProductInactive = errors.New("product is not available")
	ErrItemNotFound    = errors.New("item not in cart")
)

// OutOfStockError reports the maximum quantity the caller could still take.
type OutOfStockError struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// Identity names the cart owner: a registered user or a guest session.
// Exactly one field is set.
type Identity struct {
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func (id Identity) Validate() error {
	if (id.UserID == "") == (id.SessionID == "") {
		return ErrInvalidIdentity
	}
	return nil
}

func (id Identity) cartType() string {
	if id.UserID != "" {
		return TypeRegistered
	}
	return TypeGuest
}

// Item is a cart line joined with live product data.
type Item struct {
	ProductID     string          `json:"product_id"`
	Name          string          `json:"name"`
	ImageURL      string          `json:"image_url,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
	StockTotal    int             `json:"stock_total"`
	ReservedUntil time.Time       `json:"reserved_until"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

// Cart is the read surface returned by Get. An absent cart is represented by
// a zero ID with Status still "active"; empty is a valid state, not an error.
type Cart struct {
	ID        string          `json:"id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Type      string          `json:"cart_type"`
	Status    string          `json:"status"`
	Items     []Item          `json:"items"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

func emptyCart(id Identity) Cart {
	return Cart{
		UserID:    id.UserID,
		SessionID: id.SessionID,
		Type:      id.cartType(),
		Status:    StatusActive,
		Items:     []Item{},
		Total:     decimal.Zero,
	}
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

func totalOf(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}
	return total
}
