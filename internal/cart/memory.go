package cart

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MiriamHerrera/cosmetics-api/internal/catalog"
)

// memory mode mirrors the SQL semantics with a single mutex standing in for
// the product row lock.

type memItem struct {
	quantity      int
	reservedUntil time.Time
	createdAt     time.Time
	updatedAt     time.Time
}

type memCart struct {
	id        string
	userID    string
	sessionID string
	cartType  string
	status    string
	createdAt time.Time
	updatedAt time.Time
	items     map[string]*memItem
}

type memState struct {
	mu        sync.Mutex
	carts     map[string]*memCart
	byUser    map[string]string
	bySession map[string]string
}

func newMemState() *memState {
	return &memState{
		carts:     make(map[string]*memCart),
		byUser:    make(map[string]string),
		bySession: make(map[string]string),
	}
}

func (m *memState) activeFor(id Identity) *memCart {
	var cartID string
	if id.UserID != "" {
		cartID = m.byUser[id.UserID]
	} else {
		cartID = m.bySession[id.SessionID]
	}
	if cartID == "" {
		return nil
	}
	c := m.carts[cartID]
	if c == nil || c.status != StatusActive {
		return nil
	}
	return c
}

func (m *memState) create(id Identity, now time.Time) *memCart {
	c := &memCart{
		id:        "crt_" + uuid.NewString(),
		userID:    id.UserID,
		sessionID: id.SessionID,
		cartType:  id.cartType(),
		status:    StatusActive,
		createdAt: now,
		updatedAt: now,
		items:     make(map[string]*memItem),
	}
	m.carts[c.id] = c
	if id.UserID != "" {
		m.byUser[id.UserID] = c.id
	} else {
		m.bySession[id.SessionID] = c.id
	}
	return c
}

func (m *memState) drop(c *memCart) {
	delete(m.carts, c.id)
	if c.userID != "" && m.byUser[c.userID] == c.id {
		delete(m.byUser, c.userID)
	}
	if c.sessionID != "" && m.bySession[c.sessionID] == c.id {
		delete(m.bySession, c.sessionID)
	}
}

// reservedByOthersMem counts unexpired reservations in active carts other
// than the excluded ones. Caller holds m.mu.
func (m *memState) reservedByOthersMem(productID string, exclude map[string]bool, now time.Time) int {
	sum := 0
	for _, c := range m.carts {
		if c.status != StatusActive || exclude[c.id] {
			continue
		}
		if it, ok := c.items[productID]; ok && it.reservedUntil.After(now) {
			sum += it.quantity
		}
	}
	return sum
}

func (s *Service) memGet(ctx context.Context, id Identity) (Cart, error) {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	c := s.mem.activeFor(id)
	if c == nil {
		return emptyCart(id), nil
	}
	return s.memView(ctx, c)
}

// memView joins a cart's lines with live product data. Caller holds m.mu.
func (s *Service) memView(ctx context.Context, c *memCart) (Cart, error) {
	out := Cart{
		ID:        c.id,
		UserID:    c.userID,
		SessionID: c.sessionID,
		Type:      c.cartType,
		Status:    c.status,
		Items:     []Item{},
		CreatedAt: c.createdAt,
		UpdatedAt: c.updatedAt,
	}
	for pid, it := range c.items {
		p, err := s.products.GetProduct(ctx, pid)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return Cart{}, err
		}
		line := Item{
			ProductID:     pid,
			Name:          p.Name,
			ImageURL:      p.ImageURL,
			UnitPrice:     p.Price,
			Quantity:      it.quantity,
			StockTotal:    p.StockTotal,
			ReservedUntil: it.reservedUntil,
			Subtotal:      p.Price.Mul(decimalFromInt(it.quantity)),
		}
		out.Items = append(out.Items, line)
	}
	sortItems(out.Items, c)
	out.Total = totalOf(out.Items)
	return out, nil
}

func sortItems(items []Item, c *memCart) {
	sort.Slice(items, func(i, j int) bool {
		a, b := c.items[items[i].ProductID], c.items[items[j].ProductID]
		if a.createdAt.Equal(b.createdAt) {
			return items[i].ProductID < items[j].ProductID
		}
		return a.createdAt.Before(b.createdAt)
	})
}

func (s *Service) memAvailable(ctx context.Context, productID, excludeCartID string) (int, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if errors.Is(err, catalog.ErrNotFound) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, err
	}
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	exclude := map[string]bool{}
	if excludeCartID != "" {
		exclude[excludeCartID] = true
	}
	available := p.StockTotal - s.mem.reservedByOthersMem(productID, exclude, time.Now().UTC())
	if available < 0 {
		available = 0
	}
	return available, nil
}

func (s *Service) memAddItem(ctx context.Context, id Identity, productID string, qty int) (Cart, error) {
	p, err := s.memProduct(ctx, productID)
	if err != nil {
		return Cart{}, err
	}
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()

	now := time.Now().UTC()
	c := s.mem.activeFor(id)
	if c == nil {
		c = s.mem.create(id, now)
	}
	others := s.mem.reservedByOthersMem(productID, map[string]bool{c.id: true}, now)
	own := 0
	if it, ok := c.items[productID]; ok {
		own = it.quantity
	}
	available := p.StockTotal - others
	if own+qty > available {
		return Cart{}, &OutOfStockError{ProductID: productID, Requested: qty, Available: maxInt(0, available-own)}
	}

	it, ok := c.items[productID]
	if !ok {
		it = &memItem{createdAt: now}
		c.items[productID] = it
	}
	it.quantity = own + qty
	it.reservedUntil = now.Add(s.ttl)
	it.updatedAt = now
	c.updatedAt = now
	return s.memView(ctx, c)
}

func (s *Service) memUpdateQuantity(ctx context.Context, id Identity, productID string, qty int) (Cart, error) {
	p, err := s.memProduct(ctx, productID)
	if err != nil {
		return Cart{}, err
	}
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()

	c := s.mem.activeFor(id)
	if c == nil {
		return Cart{}, ErrItemNotFound
	}
	it, ok := c.items[productID]
	if !ok {
		return Cart{}, ErrItemNotFound
	}
	now := time.Now().UTC()
	others := s.mem.reservedByOthersMem(productID, map[string]bool{c.id: true}, now)
	available := p.StockTotal - others
	if qty > available {
		return Cart{}, &OutOfStockError{ProductID: productID, Requested: qty, Available: maxInt(0, available)}
	}
	it.quantity = qty
	it.reservedUntil = now.Add(s.ttl)
	it.updatedAt = now
	c.updatedAt = now
	return s.memView(ctx, c)
}

func (s *Service) memRemoveItem(ctx context.Context, id Identity, productID string) (Cart, error) {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	c := s.mem.activeFor(id)
	if c == nil {
		return Cart{}, ErrItemNotFound
	}
	if _, ok := c.items[productID]; !ok {
		return Cart{}, ErrItemNotFound
	}
	delete(c.items, productID)
	c.updatedAt = time.Now().UTC()
	return s.memView(ctx, c)
}

func (s *Service) memClear(ctx context.Context, id Identity) (Cart, error) {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	c := s.mem.activeFor(id)
	if c == nil {
		return emptyCart(id), nil
	}
	c.items = make(map[string]*memItem)
	c.updatedAt = time.Now().UTC()
	return s.memView(ctx, c)
}

func (s *Service) memMigrate(ctx context.Context, sessionID, userID string) (Cart, error) {
	s.mem.mu.Lock()
	guest := s.mem.activeFor(Identity{SessionID: sessionID})
	if guest == nil {
		s.mem.mu.Unlock()
		return s.memGet(ctx, Identity{UserID: userID})
	}

	now := time.Now().UTC()
	user := s.mem.activeFor(Identity{UserID: userID})
	if user == nil {
		delete(s.mem.bySession, sessionID)
		guest.sessionID = ""
		guest.userID = userID
		guest.cartType = TypeRegistered
		guest.updatedAt = now
		s.mem.byUser[userID] = guest.id
		c, err := s.memView(ctx, guest)
		s.mem.mu.Unlock()
		return c, err
	}

	for pid, gi := range guest.items {
		p, err := s.memProduct(ctx, pid)
		if err != nil {
			continue
		}
		others := s.mem.reservedByOthersMem(pid, map[string]bool{guest.id: true, user.id: true}, now)
		own := 0
		if ui, ok := user.items[pid]; ok {
			own = ui.quantity
		}
		merged := own + gi.quantity
		if limit := maxInt(0, p.StockTotal-others); merged > limit {
			merged = limit
		}
		if merged == 0 {
			continue
		}
		ui, ok := user.items[pid]
		if !ok {
			ui = &memItem{createdAt: now}
			user.items[pid] = ui
		}
		ui.quantity = merged
		ui.reservedUntil = now.Add(s.ttl)
		ui.updatedAt = now
	}
	s.mem.drop(guest)
	user.updatedAt = now
	c, err := s.memView(ctx, user)
	s.mem.mu.Unlock()
	return c, err
}

func (s *Service) memCleanup(ctx context.Context) SweepResult {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	now := time.Now().UTC()
	cutoff := now.Add(-s.cleanAfter)
	var res SweepResult
	for _, c := range s.mem.carts {
		switch c.status {
		case StatusActive:
			if len(c.items) == 0 {
				continue
			}
			lapsed := true
			for _, it := range c.items {
				if it.reservedUntil.After(now) {
					lapsed = false
					break
				}
			}
			if lapsed {
				c.status = StatusExpired
				c.updatedAt = now
				res.Expired++
			}
		case StatusExpired:
			if c.updatedAt.Before(cutoff) {
				c.items = make(map[string]*memItem)
				c.status = StatusCleaned
				c.updatedAt = now
				if c.userID != "" && s.mem.byUser[c.userID] == c.id {
					delete(s.mem.byUser, c.userID)
				}
				if c.sessionID != "" && s.mem.bySession[c.sessionID] == c.id {
					delete(s.mem.bySession, c.sessionID)
				}
				res.Cleaned++
			}
		}
	}
	return res
}

func (s *Service) memProduct(ctx context.Context, productID string) (catalog.Product, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if errors.Is(err, catalog.ErrNotFound) {
		return catalog.Product{}, ErrProductNotFound
	}
	if err != nil {
		return catalog.Product{}, err
	}
	if !p.Active {
		return catalog.Product{}, ErrProductInactive
	}
	return p, nil
}
