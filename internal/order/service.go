package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MiriamHerrera/cosmetics-api/internal/apperr"
	"github.com/MiriamHerrera/cosmetics-api/internal/cart"
	"github.com/MiriamHerrera/cosmetics-api/internal/catalog"
)

type Service struct {
	db       *sql.DB
	carts    *cart.Service
	products *catalog.Service

	whatsAppNumber string
	guestHorizon   int
	userHorizon    int

	memMu     sync.RWMutex
	memOrders map[string]Order
	memLocs   map[string]DeliveryLocation
	memSlots  map[string]TimeSlot
}

// New builds the order service. A nil db means memory mode. Horizons are the
// farthest bookable delivery day in days: guests get the short one.
func New(db *sql.DB, carts *cart.Service, products *catalog.Service, whatsAppNumber string, guestHorizon, userHorizon int) *Service {
	return &Service{
		db:             db,
		carts:          carts,
		products:       products,
		whatsAppNumber: whatsAppNumber,
		guestHorizon:   guestHorizon,
		userHorizon:    userHorizon,
		memOrders:      make(map[string]Order),
		memLocs:        make(map[string]DeliveryLocation),
		memSlots:       make(map[string]TimeSlot),
	}
}

type CreateInput struct {
	CustomerName       string `json:"customer_name"`
	CustomerPhone      string `json:"customer_phone"`
	CustomerEmail      string `json:"customer_email"`
	DeliveryLocationID string `json:"delivery_location_id"`
	DeliveryDate       string `json:"delivery_date"`
	DeliverySlot       string `json:"delivery_slot"`
}

// Receipt is what checkout hands back: the persisted order plus the
// WhatsApp handoff the client redirects to.
type Receipt struct {
	Order        Order  `json:"order"`
	Message      string `json:"message"`
	WhatsAppLink string `json:"whatsapp_link"`
}

// Create converts the identity's cart into an order inside one transaction:
// re-validate stock under product row locks, copy name and price at time of
// purchase, decrement stock for real, clear the cart. All-or-nothing.
func (s *Service) Create(ctx context.Context, id cart.Identity, in CreateInput) (Receipt, error) {
	if err := id.Validate(); err != nil {
		return Receipt{}, err
	}
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
	if in.CustomerName == "" || in.CustomerPhone == "" {
		return Receipt{}, apperr.Invalid("customer_name and customer_phone are required")
	}

	loc, err := s.GetLocation(ctx, in.DeliveryLocationID)
	if err != nil {
		return Receipt{}, err
	}
	if !loc.Active {
		return Receipt{}, ErrLocationNotFound
	}
	date, err := parseDate(in.DeliveryDate)
	if err != nil {
		return Receipt{}, err
	}
	if err := s.checkHorizon(date, id.UserID != ""); err != nil {
		return Receipt{}, err
	}
	ok, err := s.slotExists(ctx, loc.ID, int(date.Weekday()), in.DeliverySlot)
	if err != nil {
		return Receipt{}, err
	}
	if !ok {
		return Receipt{}, ErrSlotUnavailable
	}

	snapshot, err := s.carts.Get(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	if len(snapshot.Items) == 0 {
		return Receipt{}, ErrCartEmpty
	}

	now := time.Now().UTC()
	o := Order{
		ID:                 "ord_" + uuid.NewString(),
		UserID:             id.UserID,
		SessionID:          id.SessionID,
		CustomerName:       in.CustomerName,
		CustomerPhone:      in.CustomerPhone,
		CustomerEmail:      in.CustomerEmail,
		DeliveryLocationID: loc.ID,
		DeliveryDate:       date.Format(dateLayout),
		DeliverySlot:       in.DeliverySlot,
		Status:             StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if s.db == nil {
		if err := s.commitMemory(ctx, id, snapshot, &o); err != nil {
			return Receipt{}, err
		}
	} else {
		if err := s.commitSQL(ctx, snapshot, &o); err != nil {
			return Receipt{}, err
		}
	}

	msg := s.buildMessage(o, loc)
	return Receipt{Order: o, Message: msg, WhatsAppLink: s.waLink(msg)}, nil
}

func (s *Service) checkHorizon(date time.Time, registered bool) error {
	days := s.guestHorizon
	if registered {
		days = s.userHorizon
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if date.Before(today) {
		return ErrSlotUnavailable
	}
	if date.After(today.AddDate(0, 0, days)) {
		return ErrSlotUnavailable
	}
	return nil
}

func (s *Service) commitSQL(ctx context.Context, snapshot cart.Cart, o *Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	items := append([]cart.Item(nil), snapshot.Items...)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	var problems []string
	lines := make([]Item, 0, len(items))
	for _, it := range items {
		var name string
		var price = it.UnitPrice
		var stock int
		var active bool
		err := tx.QueryRowContext(ctx,
			`SELECT name, price, stock_total, active FROM products WHERE id = $1 FOR UPDATE`, it.ProductID).
			Scan(&name, &price, &stock, &active)
		if errors.Is(err, sql.ErrNoRows) {
			problems = append(problems, fmt.Sprintf("%s is no longer sold", it.Name))
			continue
		}
		if err != nil {
			return err
		}
		if !active {
			problems = append(problems, fmt.Sprintf("%s is no longer sold", name))
			continue
		}
		if stock < it.Quantity {
			problems = append(problems, fmt.Sprintf("%s: only %d left", name, stock))
			continue
		}
		lines = append(lines, Item{ProductID: it.ProductID, ProductName: name, UnitPrice: price, Quantity: it.Quantity})
	}
	if len(problems) > 0 {
		return &CheckoutError{Problems: problems}
	}

	total := decimalTotal(lines)
	o.Total = total
	o.Items = lines

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, session_id, customer_name, customer_phone, customer_email,
			delivery_location_id, delivery_date, delivery_slot, status, total, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		o.ID, nullable(o.UserID), nullable(o.SessionID), o.CustomerName, o.CustomerPhone, nullable(o.CustomerEmail),
		o.DeliveryLocationID, o.DeliveryDate, o.DeliverySlot, o.Status, o.Total, o.CreatedAt, o.UpdatedAt); err != nil {
		return err
	}
	for _, l := range lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, unit_price, quantity)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			"oit_"+uuid.NewString(), o.ID, l.ProductID, l.ProductName, l.UnitPrice, l.Quantity); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE products SET stock_total = stock_total - $1, updated_at = $2
			WHERE id = $3 AND stock_total >= $1`, l.Quantity, o.CreatedAt, l.ProductID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &CheckoutError{Problems: []string{fmt.Sprintf("%s: stock changed during checkout", l.ProductName)}}
		}
	}
	if snapshot.ID != "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, snapshot.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// commitMemory validates every line before touching any stock so a rejected
// checkout leaves nothing half-applied, then compensates if a decrement
// fails partway.
func (s *Service) commitMemory(ctx context.Context, id cart.Identity, snapshot cart.Cart, o *Order) error {
	var problems []string
	lines := make([]Item, 0, len(snapshot.Items))
	for _, it := range snapshot.Items {
		p, err := s.products.GetProduct(ctx, it.ProductID)
		if errors.Is(err, catalog.ErrNotFound) {
			problems = append(problems, fmt.Sprintf("%s is no longer sold", it.Name))
			continue
		}
		if err != nil {
			return err
		}
		if !p.Active {
			problems = append(problems, fmt.Sprintf("%s is no longer sold", p.Name))
			continue
		}
		if p.StockTotal < it.Quantity {
			problems = append(problems, fmt.Sprintf("%s: only %d left", p.Name, p.StockTotal))
			continue
		}
		lines = append(lines, Item{ProductID: p.ID, ProductName: p.Name, UnitPrice: p.Price, Quantity: it.Quantity})
	}
	if len(problems) > 0 {
		return &CheckoutError{Problems: problems}
	}

	applied := make([]Item, 0, len(lines))
	for _, l := range lines {
		if err := s.products.AdjustStock(ctx, l.ProductID, -l.Quantity); err != nil {
			for _, a := range applied {
				_ = s.products.AdjustStock(ctx, a.ProductID, a.Quantity)
			}
			return &CheckoutError{Problems: []string{fmt.Sprintf("%s: stock changed during checkout", l.ProductName)}}
		}
		applied = append(applied, l)
	}

	o.Total = decimalTotal(lines)
	o.Items = lines
	s.memMu.Lock()
	s.memOrders[o.ID] = *o
	s.memMu.Unlock()

	if _, err := s.carts.Clear(ctx, id); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// WhatsApp handoff
// ---------------------------------------------------------------------------

func (s *Service) buildMessage(o Order, loc DeliveryLocation) string {
	var b strings.Builder
	b.WriteString("*Nuevo pedido*\n")
	fmt.Fprintf(&b, "Pedido: %s\n\n", o.ID)
	for _, it := range o.Items {
		fmt.Fprintf(&b, "- %dx %s: $%s\n", it.Quantity, it.ProductName, it.UnitPrice.Mul(intDecimal(it.Quantity)).StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: $%s\n", o.Total.StringFixed(2))
	fmt.Fprintf(&b, "Entrega: %s, %s %s\n", loc.Name, o.DeliveryDate, o.DeliverySlot)
	fmt.Fprintf(&b, "Cliente: %s (%s)\n", o.CustomerName, o.CustomerPhone)
	return b.String()
}

func (s *Service) waLink(message string) string {
	if s.whatsAppNumber == "" {
		return ""
	}
	return fmt.Sprintf("https://wa.me/%s?text=%s", s.whatsAppNumber, url.QueryEscape(message))
}

func decimalTotal(lines []Item) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(intDecimal(l.Quantity)))
	}
	return total
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
