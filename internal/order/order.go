// Package order turns cart snapshots into persisted orders and owns delivery
// scheduling. Order creation is the only place product stock is decremented.
package order

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MiriamHerrera/cosmetics-api/internal/apperr"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

var (
	ErrCartEmpty        = errors.New("cart is empty")
	ErrLocationNotFound = errors.New("delivery location not found")
	ErrSlotUnavailable  = errors.New("delivery slot not available")
	ErrOrderNotFound    = errors.New("order not found")
	ErrBadTransition    = errors.New("invalid status transition")
)

// CheckoutError aggregates everything that blocked an order commit; no
// partial order is persisted when it is returned.
type CheckoutError struct {
	Problems []string `json:"problems"`
}

func (e *CheckoutError) Error() string {
	return "checkout failed: " + strings.Join(e.Problems, "; ")
}

type Item struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

type Order struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id,omitempty"`
	SessionID          string          `json:"session_id,omitempty"`
	CustomerName       string          `json:"customer_name"`
	CustomerPhone      string          `json:"customer_phone"`
	CustomerEmail      string          `json:"customer_email,omitempty"`
	DeliveryLocationID string          `json:"delivery_location_id"`
	DeliveryDate       string          `json:"delivery_date"`
	DeliverySlot       string          `json:"delivery_slot"`
	Status             string          `json:"status"`
	Total              decimal.Decimal `json:"total"`
	Items              []Item          `json:"items,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type DeliveryLocation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// TimeSlot is a recurring weekly delivery window at one location,
// e.g. weekday 6 (Saturday), slot "10:00-12:00".
type TimeSlot struct {
	ID         string `json:"id"`
	LocationID string `json:"location_id"`
	Weekday    int    `json:"weekday"`
	Slot       string `json:"slot"`
	Active     bool   `json:"active"`
}

const dateLayout = "2006-01-02"

func intDecimal(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, apperr.Invalid("invalid delivery_date, want YYYY-MM-DD")
	}
	return d, nil
}

func validStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// allowedTransition encodes pending → confirmed → delivered, with
// cancellation possible until delivery.
func allowedTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusDelivered || to == StatusCancelled
	}
	return false
}
