package cart

import (
	"context"
	"time"

	"github.com/MiriamHerrera/cosmetics-api/internal/obs"
)

// SweepResult reports what one cleanup pass did.
type SweepResult struct {
	Expired int `json:"expired"`
	Cleaned int `json:"cleaned"`
}

// CleanupExpired marks active carts whose reservations have all lapsed as
// expired, freeing their stock, and removes the rows of carts that have been
// expired longer than the clean-after window, marking them cleaned.
func (s *Service) CleanupExpired(ctx context.Context) (SweepResult, error) {
	if s.db == nil {
		return s.memCleanup(ctx), nil
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE carts c SET status = 'expired', updated_at = $1
		WHERE c.status = 'active'
		  AND EXISTS (SELECT 1 FROM cart_items ci WHERE ci.cart_id = c.id)
		  AND NOT EXISTS (SELECT 1 FROM cart_items ci WHERE ci.cart_id = c.id AND ci.reserved_until > $1)`,
		now)
	if err != nil {
		return SweepResult{}, err
	}
	expired, _ := res.RowsAffected()

	cutoff := now.Add(-s.cleanAfter)
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE cart_id IN
			(SELECT id FROM carts WHERE status = 'expired' AND updated_at < $1)`, cutoff); err != nil {
		return SweepResult{}, err
	}
	res, err = s.db.ExecContext(ctx, `
		UPDATE carts SET status = 'cleaned', updated_at = $1
		WHERE status = 'expired' AND updated_at < $2`, now, cutoff)
	if err != nil {
		return SweepResult{}, err
	}
	cleaned, _ := res.RowsAffected()

	return SweepResult{Expired: int(expired), Cleaned: int(cleaned)}, nil
}

// RunSweeper invokes CleanupExpired on a fixed interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			res, err := s.CleanupExpired(ctx)
			if err != nil {
				obs.Logger.Error("cart_sweep_failed", "error", err)
				continue
			}
			if res.Expired > 0 || res.Cleaned > 0 {
				obs.Logger.Info("cart_sweep", "expired", res.Expired, "cleaned", res.Cleaned)
			}
		}
	}
}
