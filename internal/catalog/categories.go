package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MiriamHerrera/cosmetics-api/internal/apperr"
)

var ErrCategoryNotFound = errors.New("category not found")

// ListCategories returns every category ordered by name.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	if s.db == nil {
		s.memMu.RLock()
		out := make([]Category, 0, len(s.memCats))
		for _, c := range s.memCats {
			out = append(out, c)
		}
		s.memMu.RUnlock()
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Service) CreateCategory(ctx context.Context, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, apperr.Invalid("name is required")
	}
	c := Category{ID: "cat_" + uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	if s.db == nil {
		s.memMu.Lock()
		defer s.memMu.Unlock()
		for _, existing := range s.memCats {
			if strings.EqualFold(existing.Name, name) {
				return Category{}, apperr.Invalid("category already exists")
			}
		}
		s.memCats[c.ID] = c
		return c, nil
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, created_at) VALUES ($1,$2,$3)`,
		c.ID, c.Name, c.CreatedAt); err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return Category{}, apperr.Invalid("category already exists")
		}
		return Category{}, err
	}
	return c, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if s.db == nil {
		s.memMu.Lock()
		defer s.memMu.Unlock()
		if _, ok := s.memCats[id]; !ok {
			return ErrCategoryNotFound
		}
		for pid, p := range s.memProds {
			if p.CategoryID == id {
				p.CategoryID = ""
				s.memProds[pid] = p
			}
		}
		delete(s.memCats, id)
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE products SET category_id = NULL WHERE category_id = $1`, id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCategoryNotFound
	}
	return nil
}
