// Package survey owns customer polls: questions, options and one vote per
// voter per survey.
package survey

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MiriamHerrera/cosmetics-api/internal/apperr"
)

var (
	ErrNotFound       = errors.New("survey not found")
	ErrOptionNotFound = errors.New("option not found")
	ErrInactive       = errors.New("survey is closed")
)

type Option struct {
	ID       string `json:"id"`
	SurveyID string `json:"survey_id"`
	Label    string `json:"label"`
	Position int    `json:"position"`
}

type Survey struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Active    bool      `json:"active"`
	Options   []Option  `json:"options,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// OptionResult is one row of a survey's tally.
type OptionResult struct {
	Option
	Votes   int     `json:"votes"`
	Percent float64 `json:"percent"`
}

type Results struct {
	Survey     Survey         `json:"survey"`
	TotalVotes int            `json:"total_votes"`
	Options    []OptionResult `json:"options"`
}

type memVote struct {
	optionID string
}

type Service struct {
	db *sql.DB

	memMu      sync.RWMutex
	memSurveys map[string]Survey
	memVotes   map[string]map[string]memVote // survey id -> voter key
}

// New builds the survey service. A nil db means memory mode.
func New(db *sql.DB) *Service {
	return &Service{
		db:         db,
		memSurveys: make(map[string]Survey),
		memVotes:   make(map[string]map[string]memVote),
	}
}

// ---------------------------------------------------------------------------
// Read
// ---------------------------------------------------------------------------

func (s *Service) List(ctx context.Context, activeOnly bool) ([]Survey, error) {
	if s.db == nil {
		s.memMu.RLock()
		out := make([]Survey, 0, len(s.memSurveys))
		for _, sv := range s.memSurveys {
			if activeOnly && !sv.Active {
				continue
			}
			out = append(out, sv)
		}
		s.memMu.RUnlock()
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		return out, nil
	}
	q := `SELECT id, question, active, created_at FROM surveys`
	if activeOnly {
		q += ` WHERE active`
	}
	q += ` ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Survey
	for rows.Next() {
		var sv Survey
		if err := rows.Scan(&sv.ID, &sv.Question, &sv.Active, &sv.CreatedAt); err != nil {
			return nil, err
		}
		sv.Options, err = s.optionsOf(ctx, sv.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

func (s *Service) Get(ctx context.Context, id string) (Survey, error) {
	if s.db == nil {
		s.memMu.RLock()
		defer s.memMu.RUnlock()
		sv, ok := s.memSurveys[id]
		if !ok {
			return Survey{}, ErrNotFound
		}
		return sv, nil
	}
	var sv Survey
	err := s.db.QueryRowContext(ctx,
		`SELECT id, question, active, created_at FROM surveys WHERE id = $1`, id).
		Scan(&sv.ID, &sv.Question, &sv.Active, &sv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Survey{}, ErrNotFound
	}
	if err != nil {
		return Survey{}, err
	}
	sv.Options, err = s.optionsOf(ctx, id)
	return sv, err
}

func (s *Service) optionsOf(ctx context.Context, surveyID string) ([]Option, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, survey_id, label, position FROM survey_options WHERE survey_id = $1 ORDER BY position, label`,
		surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Option
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.SurveyID, &o.Label, &o.Position); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Write (admin)
// ---------------------------------------------------------------------------

type CreateInput struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Survey, error) {
	in.Question = strings.TrimSpace(in.Question)
	if in.Question == "" {
		return Survey{}, apperr.Invalid("question is required")
	}
	labels := make([]string, 0, len(in.Options))
	for _, l := range in.Options {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	if len(labels) < 2 {
		return Survey{}, apperr.Invalid("at least two options are required")
	}

	sv := Survey{
		ID:        "svy_" + uuid.NewString(),
		Question:  in.Question,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	for i, l := range labels {
		sv.Options = append(sv.Options, Option{
			ID:       "opt_" + uuid.NewString(),
			SurveyID: sv.ID,
			Label:    l,
			Position: i,
		})
	}

	if s.db == nil {
		s.memMu.Lock()
		s.memSurveys[sv.ID] = sv
		s.memVotes[sv.ID] = make(map[string]memVote)
		s.memMu.Unlock()
		return sv, nil
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO surveys (id, question, active, created_at) VALUES ($1,$2,$3,$4)`,
		sv.ID, sv.Question, sv.Active, sv.CreatedAt); err != nil {
		return Survey{}, err
	}
	for _, o := range sv.Options {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO survey_options (id, survey_id, label, position) VALUES ($1,$2,$3,$4)`,
			o.ID, o.SurveyID, o.Label, o.Position); err != nil {
			return Survey{}, err
		}
	}
	return sv, nil
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) (Survey, error) {
	if s.db == nil {
		s.memMu.Lock()
		sv, ok := s.memSurveys[id]
		if !ok {
			s.memMu.Unlock()
			return Survey{}, ErrNotFound
		}
		sv.Active = active
		s.memSurveys[id] = sv
		s.memMu.Unlock()
		return sv, nil
	}
	res, err := s.db.ExecContext(ctx, `UPDATE surveys SET active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return Survey{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Survey{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		s.memMu.Lock()
		defer s.memMu.Unlock()
		if _, ok := s.memSurveys[id]; !ok {
			return ErrNotFound
		}
		delete(s.memSurveys, id)
		delete(s.memVotes, id)
		return nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM surveys WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Voting
// ---------------------------------------------------------------------------

// Vote records a voter's choice. Revoting moves the vote to the new option.
func (s *Service) Vote(ctx context.Context, surveyID, optionID, voterKey string) error {
	voterKey = strings.TrimSpace(voterKey)
	if voterKey == "" {
		return apperr.Invalid("voter key is required")
	}
	sv, err := s.Get(ctx, surveyID)
	if err != nil {
		return err
	}
	if !sv.Active {
		return ErrInactive
	}
	found := false
	for _, o := range sv.Options {
		if o.ID == optionID {
			found = true
			break
		}
	}
	if !found {
		return ErrOptionNotFound
	}

	if s.db == nil {
		s.memMu.Lock()
		defer s.memMu.Unlock()
		votes := s.memVotes[surveyID]
		if votes == nil {
			votes = make(map[string]memVote)
			s.memVotes[surveyID] = votes
		}
		votes[voterKey] = memVote{optionID: optionID}
		return nil
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO survey_votes (id, survey_id, option_id, voter_key, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (survey_id, voter_key)
		DO UPDATE SET option_id = EXCLUDED.option_id, created_at = EXCLUDED.created_at`,
		"vot_"+uuid.NewString(), surveyID, optionID, voterKey, time.Now().UTC())
	return err
}

// TallyResults counts votes per option with percentages.
func (s *Service) TallyResults(ctx context.Context, surveyID string) (Results, error) {
	sv, err := s.Get(ctx, surveyID)
	if err != nil {
		return Results{}, err
	}

	counts := make(map[string]int, len(sv.Options))
	total := 0
	if s.db == nil {
		s.memMu.RLock()
		for _, v := range s.memVotes[surveyID] {
			counts[v.optionID]++
			total++
		}
		s.memMu.RUnlock()
	} else {
		rows, err := s.db.QueryContext(ctx,
			`SELECT option_id, COUNT(*) FROM survey_votes WHERE survey_id = $1 GROUP BY option_id`, surveyID)
		if err != nil {
			return Results{}, err
		}
		defer rows.Close()
		for rows.Next() {
			var optionID string
			var n int
			if err := rows.Scan(&optionID, &n); err != nil {
				return Results{}, err
			}
			counts[optionID] = n
			total += n
		}
		if err := rows.Err(); err != nil {
			return Results{}, err
		}
	}

	res := Results{Survey: sv, TotalVotes: total}
	for _, o := range sv.Options {
		or := OptionResult{Option: o, Votes: counts[o.ID]}
		if total > 0 {
			or.Percent = float64(or.Votes) * 100 / float64(total)
		}
		res.Options = append(res.Options, or)
	}
	return res, nil
}
