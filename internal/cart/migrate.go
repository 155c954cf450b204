package cart

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MiriamHerrera/cosmetics-api/internal/apperr"
)

// MigrateGuestToUser reassigns a guest cart to the user who just logged in.
// If the user already holds an active cart the item lists are merged, summing
// quantities per product and re-capping against availability, and the guest
// cart row is discarded. Idempotent: once the guest cart is gone, calling
// again is a no-op.
func (s *Service) MigrateGuestToUser(ctx context.Context, sessionID, userID string) (Cart, error) {
	if sessionID == "" || userID == "" {
		return Cart{}, apperr.Invalid("session_id and user_id are required")
	}
	if s.db == nil {
		return s.memMigrate(ctx, sessionID, userID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Cart{}, err
	}
	defer tx.Rollback()

	guest, err := s.activeCart(ctx, tx, Identity{SessionID: sessionID}, true)
	if errors.Is(err, sql.ErrNoRows) {
		// nothing left to migrate
		return s.Get(ctx, Identity{UserID: userID})
	}
	if err != nil {
		return Cart{}, err
	}

	now := time.Now().UTC()
	user, err := s.activeCart(ctx, tx, Identity{UserID: userID}, true)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// simple re-key: the guest cart becomes the user's cart
		_, err = tx.ExecContext(ctx, `
			UPDATE carts SET user_id = $1, session_id = NULL, cart_type = 'registered', updated_at = $2
			WHERE id = $3`, userID, now, guest.ID)
		if err != nil {
			return Cart{}, err
		}
	case err != nil:
		return Cart{}, err
	default:
		if err := s.mergeTx(ctx, tx, guest.ID, user.ID, now); err != nil {
			return Cart{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Cart{}, err
	}
	return s.Get(ctx, Identity{UserID: userID})
}

func (s *Service) mergeTx(ctx context.Context, tx dbtx, guestCartID, userCartID string, now time.Time) error {
	// products locked in id order across carts to keep lock acquisition stable
	rows, err := tx.QueryContext(ctx,
		`SELECT product_id, quantity FROM cart_items WHERE cart_id = $1 ORDER BY product_id`, guestCartID)
	if err != nil {
		return err
	}
	type line struct {
		productID string
		qty       int
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.qty); err != nil {
			rows.Close()
			return err
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, l := range lines {
		stock, err := s.lockProduct(ctx, tx, l.productID)
		if errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrProductInactive) {
			continue // dropped from catalog mid-session; skip the line
		}
		if err != nil {
			return err
		}
		others, err := s.reservedByOthers(ctx, tx, l.productID, []string{guestCartID, userCartID}, now)
		if err != nil {
			return err
		}
		own, err := ownQuantity(ctx, tx, userCartID, l.productID)
		if err != nil {
			return err
		}
		merged := own + l.qty
		if limit := maxInt(0, stock-others); merged > limit {
			merged = limit
		}
		if merged == 0 {
			continue
		}
		if err := upsertItem(ctx, tx, userCartID, l.productID, merged, now.Add(s.ttl), now); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, guestCartID); err != nil {
		return err
	}
	return touchCart(ctx, tx, userCartID, now)
}
