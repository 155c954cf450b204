// Package catalog owns products and categories.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MiriamHerrera/cosmetics-api/internal/apperr"
	"github.com/MiriamHerrera/cosmetics-api/internal/keyset"
)

var ErrNotFound = errors.New("product not found")

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Brand       string          `json:"brand,omitempty"`
	CategoryID  string          `json:"category_id,omitempty"`
	Price       decimal.Decimal `json:"price"`
	StockTotal  int             `json:"stock_total"`
	ImageURL    string          `json:"image_url,omitempty"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type ListFilter struct {
	CategoryID string
	ActiveOnly bool
	Cursor     string
	Limit      int
}

type ListResult struct {
	Items      []Product `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
	Cached     bool      `json:"cached"`
}

type cacheItem struct {
	result  ListResult
	expires time.Time
}

type Service struct {
	db       *sql.DB
	cacheTTL time.Duration

	cacheMu   sync.RWMutex
	listCache map[string]cacheItem

	memMu    sync.RWMutex
	memProds map[string]Product
	memCats  map[string]Category
}

// New builds the catalog service. A nil db means memory mode.
func New(db *sql.DB, cacheTTL time.Duration) *Service {
	return &Service{
		db:        db,
		cacheTTL:  cacheTTL,
		listCache: make(map[string]cacheItem),
		memProds:  make(map[string]Product),
		memCats:   make(map[string]Category),
	}
}

// ---------------------------------------------------------------------------
// Products - read
// ---------------------------------------------------------------------------

// ListProducts pages through the catalog newest-first. First pages are served
// from a short-lived cache that every mutation invalidates.
func (s *Service) ListProducts(ctx context.Context, f ListFilter) (ListResult, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Cursor == "" {
		if cached, ok := s.cachedList(f); ok {
			cached.Cached = true
			return cached, nil
		}
	}

	var res ListResult
	var err error
	if s.db == nil {
		res, err = s.listMemory(f)
	} else {
		res, err = s.listSQL(ctx, f)
	}
	if err != nil {
		return ListResult{}, err
	}
	if f.Cursor == "" {
		s.storeList(f, res)
	}
	return res, nil
}

func (s *Service) listSQL(ctx context.Context, f ListFilter) (ListResult, error) {
	cursorTime, cursorID, err := keyset.Decode(f.Cursor)
	if err != nil {
		return ListResult{}, err
	}

	where := []string{"TRUE"}
	args := []any{}
	next := 1
	if f.CategoryID != "" {
		where = append(where, fmt.Sprintf("category_id = $%d", next))
		args = append(args, f.CategoryID)
		next++
	}
	if f.ActiveOnly {
		where = append(where, "active")
	}
	if !cursorTime.IsZero() {
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", next, next+1))
		args = append(args, cursorTime, cursorID)
		next += 2
	}
	args = append(args, f.Limit+1)
	q := fmt.Sprintf(`
		SELECT id, name, description, brand, category_id, price, stock_total, image_url, active, created_at, updated_at
		FROM products
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d
	`, strings.Join(where, " AND "), next)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return ListResult{}, err
	}
	defer rows.Close()

	items := make([]Product, 0, f.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return ListResult{}, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, err
	}
	return pageOf(items, f.Limit), nil
}

func (s *Service) listMemory(f ListFilter) (ListResult, error) {
	cursorTime, cursorID, err := keyset.Decode(f.Cursor)
	if err != nil {
		return ListResult{}, err
	}

	s.memMu.RLock()
	items := make([]Product, 0, len(s.memProds))
	for _, p := range s.memProds {
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		if f.ActiveOnly && !p.Active {
			continue
		}
		items = append(items, p)
	}
	s.memMu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	if !cursorTime.IsZero() {
		filtered := items[:0]
		for _, it := range items {
			if it.CreatedAt.Before(cursorTime) || (it.CreatedAt.Equal(cursorTime) && it.ID < cursorID) {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	return pageOf(items, f.Limit), nil
}

func pageOf(items []Product, limit int) ListResult {
	res := ListResult{Items: items}
	if len(items) > limit {
		last := items[limit-1]
		res.Items = items[:limit]
		res.NextCursor = keyset.Encode(last.CreatedAt, last.ID)
	}
	return res
}

// GetProduct returns one product by id.
func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	if s.db == nil {
		s.memMu.RLock()
		defer s.memMu.RUnlock()
		p, ok := s.memProds[id]
		if !ok {
			return Product{}, ErrNotFound
		}
		return p, nil
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, brand, category_id, price, stock_total, image_url, active, created_at, updated_at
		FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// ---------------------------------------------------------------------------
// Products - write (admin)
// ---------------------------------------------------------------------------

type ProductInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Brand       string          `json:"brand"`
	CategoryID  string          `json:"category_id"`
	Price       decimal.Decimal `json:"price"`
	StockTotal  int             `json:"stock_total"`
	ImageURL    string          `json:"image_url"`
	Active      *bool           `json:"active"`
}

func (in *ProductInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.Invalid("name is required")
	}
	if in.Price.IsNegative() {
		return apperr.Invalid("price must not be negative")
	}
	if in.StockTotal < 0 {
		return apperr.Invalid("stock_total must not be negative")
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := in.validate(); err != nil {
		return Product{}, err
	}
	now := time.Now().UTC()
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	p := Product{
		ID:          "prd_" + uuid.NewString(),
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Brand:       strings.TrimSpace(in.Brand),
		CategoryID:  strings.TrimSpace(in.CategoryID),
		Price:       in.Price,
		StockTotal:  in.StockTotal,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if s.db == nil {
		s.memMu.Lock()
		s.memProds[p.ID] = p
		s.memMu.Unlock()
		s.invalidateCache()
		return p, nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, brand, category_id, price, stock_total, image_url, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.Name, nilIfEmpty(p.Description), nilIfEmpty(p.Brand), nilIfEmpty(p.CategoryID),
		p.Price, p.StockTotal, nilIfEmpty(p.ImageURL), p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	s.invalidateCache()
	return p, nil
}

type ProductUpdate struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Brand       *string          `json:"brand,omitempty"`
	CategoryID  *string          `json:"category_id,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	StockTotal  *int             `json:"stock_total,omitempty"`
	ImageURL    *string          `json:"image_url,omitempty"`
	Active      *bool            `json:"active,omitempty"`
}

func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductUpdate) (Product, error) {
	if in.Name == nil && in.Description == nil && in.Brand == nil && in.CategoryID == nil &&
		in.Price == nil && in.StockTotal == nil && in.ImageURL == nil && in.Active == nil {
		return Product{}, apperr.Invalid("empty update payload")
	}
	if in.Price != nil && in.Price.IsNegative() {
		return Product{}, apperr.Invalid("price must not be negative")
	}
	if in.StockTotal != nil && *in.StockTotal < 0 {
		return Product{}, apperr.Invalid("stock_total must not be negative")
	}

	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Brand != nil {
		p.Brand = strings.TrimSpace(*in.Brand)
	}
	if in.CategoryID != nil {
		p.CategoryID = strings.TrimSpace(*in.CategoryID)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.StockTotal != nil {
		p.StockTotal = *in.StockTotal
	}
	if in.ImageURL != nil {
		p.ImageURL = strings.TrimSpace(*in.ImageURL)
	}
	if in.Active != nil {
		p.Active = *in.Active
	}
	p.UpdatedAt = time.Now().UTC()

	if s.db == nil {
		s.memMu.Lock()
		if _, ok := s.memProds[id]; !ok {
			s.memMu.Unlock()
			return Product{}, ErrNotFound
		}
		s.memProds[id] = p
		s.memMu.Unlock()
		s.invalidateCache()
		return p, nil
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET name=$1, description=$2, brand=$3, category_id=$4, price=$5,
			stock_total=$6, image_url=$7, active=$8, updated_at=$9
		WHERE id=$10`,
		p.Name, nilIfEmpty(p.Description), nilIfEmpty(p.Brand), nilIfEmpty(p.CategoryID),
		p.Price, p.StockTotal, nilIfEmpty(p.ImageURL), p.Active, p.UpdatedAt, id)
	if err != nil {
		return Product{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Product{}, ErrNotFound
	}
	s.invalidateCache()
	return p, nil
}

// DeleteProduct removes a product. Cart lines referencing it go with it: the
// cart_items cascade in SQL mode, and the memory view skips missing products.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if s.db == nil {
		s.memMu.Lock()
		defer s.memMu.Unlock()
		if _, ok := s.memProds[id]; !ok {
			return ErrNotFound
		}
		delete(s.memProds, id)
		s.invalidateCache()
		return nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.invalidateCache()
	return nil
}

// AdjustStock applies a delta to stock_total, used when an order is cancelled
// in memory mode. SQL order paths decrement inside their own transaction.
func (s *Service) AdjustStock(ctx context.Context, id string, delta int) error {
	if s.db == nil {
		s.memMu.Lock()
		defer s.memMu.Unlock()
		p, ok := s.memProds[id]
		if !ok {
			return ErrNotFound
		}
		if p.StockTotal+delta < 0 {
			return apperr.Invalid("stock would become negative")
		}
		p.StockTotal += delta
		p.UpdatedAt = time.Now().UTC()
		s.memProds[id] = p
		s.invalidateCache()
		return nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET stock_total = stock_total + $1, updated_at = $2
		 WHERE id = $3 AND stock_total + $1 >= 0`, delta, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.invalidateCache()
	return nil
}

// ---------------------------------------------------------------------------
// Cache
// ---------------------------------------------------------------------------

func (s *Service) cachedList(f ListFilter) (ListResult, bool) {
	key := listKey(f)
	s.cacheMu.RLock()
	item, ok := s.listCache[key]
	s.cacheMu.RUnlock()
	if !ok || time.Now().After(item.expires) {
		return ListResult{}, false
	}
	return item.result, true
}

func (s *Service) storeList(f ListFilter, res ListResult) {
	key := listKey(f)
	s.cacheMu.Lock()
	s.listCache[key] = cacheItem{result: res, expires: time.Now().Add(s.cacheTTL)}
	s.cacheMu.Unlock()
}

func (s *Service) invalidateCache() {
	s.cacheMu.Lock()
	s.listCache = make(map[string]cacheItem)
	s.cacheMu.Unlock()
}

func listKey(f ListFilter) string {
	return fmt.Sprintf("%s|%t|%s|%d", f.CategoryID, f.ActiveOnly, f.Cursor, f.Limit)
}

// ---------------------------------------------------------------------------
// Scan helpers
// ---------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	var desc, brand, catID, img sql.NullString
	err := row.Scan(&p.ID, &p.Name, &desc, &brand, &catID, &p.Price, &p.StockTotal, &img, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	p.Description = desc.String
	p.Brand = brand.String
	p.CategoryID = catID.String
	p.ImageURL = img.String
	return p, nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
