package order

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MiriamHerrera/cosmetics-api/internal/apperr"
)

// ---------------------------------------------------------------------------
// Delivery locations
// ---------------------------------------------------------------------------

// ListLocations returns delivery locations, optionally only active ones.
func (s *Service) ListLocations(ctx context.Context, activeOnly bool) ([]DeliveryLocation, error) {
	if s.db == nil {
		s.memMu.RLock()
		out := make([]DeliveryLocation, 0, len(s.memLocs))
		for _, l := range s.memLocs {
			if activeOnly && !l.Active {
				continue
			}
			out = append(out, l)
		}
		s.memMu.RUnlock()
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, nil
	}
	q := `SELECT id, name, address, active, created_at FROM delivery_locations`
	if activeOnly {
		q += ` WHERE active`
	}
	q += ` ORDER BY name`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DeliveryLocation
	for rows.Next() {
		var l DeliveryLocation
		var addr sql.NullString
		if err := rows.Scan(&l.ID, &l.Name, &addr, &l.Active, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Address = addr.String
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Service) GetLocation(ctx context.Context, id string) (DeliveryLocation, error) {
	if s.db == nil {
		s.memMu.RLock()
		defer s.memMu.RUnlock()
		l, ok := s.memLocs[id]
		if !ok {
			return DeliveryLocation{}, ErrLocationNotFound
		}
		return l, nil
	}
	var l DeliveryLocation
	var addr sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, address, active, created_at FROM delivery_locations WHERE id = $1`, id).
		Scan(&l.ID, &l.Name, &addr, &l.Active, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DeliveryLocation{}, ErrLocationNotFound
	}
	if err != nil {
		return DeliveryLocation{}, err
	}
	l.Address = addr.String
	return l, nil
}

type LocationInput struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Active  *bool  `json:"active"`
}

func (s *Service) CreateLocation(ctx context.Context, in LocationInput) (DeliveryLocation, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return DeliveryLocation{}, apperr.Invalid("name is required")
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	l := DeliveryLocation{
		ID:        "loc_" + uuid.NewString(),
		Name:      in.Name,
		Address:   strings.TrimSpace(in.Address),
		Active:    active,
		CreatedAt: time.Now().UTC(),
	}
	if s.db == nil {
		s.memMu.Lock()
		s.memLocs[l.ID] = l
		s.memMu.Unlock()
		return l, nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delivery_locations (id, name, address, active, created_at) VALUES ($1,$2,$3,$4,$5)`,
		l.ID, l.Name, nullable(l.Address), l.Active, l.CreatedAt)
	if err != nil {
		return DeliveryLocation{}, err
	}
	return l, nil
}

func (s *Service) UpdateLocation(ctx context.Context, id string, in LocationInput) (DeliveryLocation, error) {
	l, err := s.GetLocation(ctx, id)
	if err != nil {
		return DeliveryLocation{}, err
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		l.Name = name
	}
	if addr := strings.TrimSpace(in.Address); addr != "" {
		l.Address = addr
	}
	if in.Active != nil {
		l.Active = *in.Active
	}
	if s.db == nil {
		s.memMu.Lock()
		s.memLocs[id] = l
		s.memMu.Unlock()
		return l, nil
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE delivery_locations SET name = $1, address = $2, active = $3 WHERE id = $4`,
		l.Name, nullable(l.Address), l.Active, id)
	if err != nil {
		return DeliveryLocation{}, err
	}
	return l, nil
}

func (s *Service) DeleteLocation(ctx context.Context, id string) error {
	if s.db == nil {
		s.memMu.Lock()
		defer s.memMu.Unlock()
		if _, ok := s.memLocs[id]; !ok {
			return ErrLocationNotFound
		}
		delete(s.memLocs, id)
		for sid, slot := range s.memSlots {
			if slot.LocationID == id {
				delete(s.memSlots, sid)
			}
		}
		return nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM delivery_locations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrLocationNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Time slots
// ---------------------------------------------------------------------------

type SlotInput struct {
	LocationID string `json:"location_id"`
	Weekday    int    `json:"weekday"`
	Slot       string `json:"slot"`
}

func (s *Service) CreateSlot(ctx context.Context, in SlotInput) (TimeSlot, error) {
	in.Slot = strings.TrimSpace(in.Slot)
	if in.Slot == "" {
		return TimeSlot{}, apperr.Invalid("slot is required")
	}
	if in.Weekday < 0 || in.Weekday > 6 {
		return TimeSlot{}, apperr.Invalid("weekday must be between 0 and 6")
	}
	if _, err := s.GetLocation(ctx, in.LocationID); err != nil {
		return TimeSlot{}, err
	}
	ts := TimeSlot{
		ID:         "slt_" + uuid.NewString(),
		LocationID: in.LocationID,
		Weekday:    in.Weekday,
		Slot:       in.Slot,
		Active:     true,
	}
	if s.db == nil {
		s.memMu.Lock()
		defer s.memMu.Unlock()
		for _, existing := range s.memSlots {
			if existing.LocationID == ts.LocationID && existing.Weekday == ts.Weekday && existing.Slot == ts.Slot {
				return TimeSlot{}, apperr.Invalid("slot already exists")
			}
		}
		s.memSlots[ts.ID] = ts
		return ts, nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delivery_time_slots (id, location_id, weekday, slot, active) VALUES ($1,$2,$3,$4,$5)`,
		ts.ID, ts.LocationID, ts.Weekday, ts.Slot, ts.Active)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return TimeSlot{}, apperr.Invalid("slot already exists")
		}
		return TimeSlot{}, err
	}
	return ts, nil
}

// ListSlots returns every configured slot for a location, active or not,
// ordered by weekday then window.
func (s *Service) ListSlots(ctx context.Context, locationID string) ([]TimeSlot, error) {
	if _, err := s.GetLocation(ctx, locationID); err != nil {
		return nil, err
	}
	if s.db == nil {
		s.memMu.RLock()
		out := make([]TimeSlot, 0)
		for _, ts := range s.memSlots {
			if ts.LocationID == locationID {
				out = append(out, ts)
			}
		}
		s.memMu.RUnlock()
		sort.Slice(out, func(i, j int) bool {
			if out[i].Weekday != out[j].Weekday {
				return out[i].Weekday < out[j].Weekday
			}
			return out[i].Slot < out[j].Slot
		})
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, location_id, weekday, slot, active FROM delivery_time_slots
		 WHERE location_id = $1 ORDER BY weekday, slot`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TimeSlot{}
	for rows.Next() {
		var ts TimeSlot
		if err := rows.Scan(&ts.ID, &ts.LocationID, &ts.Weekday, &ts.Slot, &ts.Active); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (s *Service) DeleteSlot(ctx context.Context, id string) error {
	if s.db == nil {
		s.memMu.Lock()
		defer s.memMu.Unlock()
		if _, ok := s.memSlots[id]; !ok {
			return ErrSlotUnavailable
		}
		delete(s.memSlots, id)
		return nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM delivery_time_slots WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSlotUnavailable
	}
	return nil
}

// SlotsForDate lists the bookable windows at a location on a given date,
// applying the role-dependent horizon the same way Create does.
func (s *Service) SlotsForDate(ctx context.Context, locationID, dateStr string, registered bool) ([]string, error) {
	loc, err := s.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if !loc.Active {
		return nil, ErrLocationNotFound
	}
	date, err := parseDate(dateStr)
	if err != nil {
		return nil, err
	}
	if err := s.checkHorizon(date, registered); err != nil {
		return []string{}, nil
	}
	weekday := int(date.Weekday())

	if s.db == nil {
		s.memMu.RLock()
		var out []string
		for _, ts := range s.memSlots {
			if ts.LocationID == locationID && ts.Weekday == weekday && ts.Active {
				out = append(out, ts.Slot)
			}
		}
		s.memMu.RUnlock()
		sort.Strings(out)
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT slot FROM delivery_time_slots
		 WHERE location_id = $1 AND weekday = $2 AND active ORDER BY slot`, locationID, weekday)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}

func (s *Service) slotExists(ctx context.Context, locationID string, weekday int, slot string) (bool, error) {
	if s.db == nil {
		s.memMu.RLock()
		defer s.memMu.RUnlock()
		for _, ts := range s.memSlots {
			if ts.LocationID == locationID && ts.Weekday == weekday && ts.Slot == slot && ts.Active {
				return true, nil
			}
		}
		return false, nil
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM delivery_time_slots
		 WHERE location_id = $1 AND weekday = $2 AND slot = $3 AND active`, locationID, weekday, slot).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
