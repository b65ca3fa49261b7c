// Package kkm holds the per-slot passing thresholds (KKM).
package kkm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mind-engage/mindengage-kkm/internal/apperr"
	"github.com/mind-engage/mindengage-kkm/internal/db"
)

const (
	// DefaultKKM applies to any slot without a stored row.
	DefaultKKM = 75

	FirstSlot      = 1
	EvaluationSlot = 5
	SlotCount      = 5
)

type Setting struct {
	QuizNumber int `json:"quiz_number"`
	KKM        int `json:"kkm"`
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func ValidSlot(n int) bool { return n >= FirstSlot && n <= EvaluationSlot }

// Get returns the threshold for one slot. It never fails: a missing row or a
// storage error both yield DefaultKKM.
func (s *Store) Get(ctx context.Context, slot int) int {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT kkm FROM kkm_settings WHERE quiz_number=$1`, slot).Scan(&v)
	switch {
	case err == nil:
		return v
	case errors.Is(err, sql.ErrNoRows):
		return DefaultKKM
	default:
		zerolog.Ctx(ctx).Warn().Err(err).Int("quiz_number", slot).Msg("kkm lookup failed, using default")
		return DefaultKKM
	}
}

// GetAll returns slots 1..5 in order; slots without a row carry DefaultKKM.
func (s *Store) GetAll(ctx context.Context) ([]Setting, error) {
	stored, err := Lookup(ctx, s.db)
	if err != nil {
		return nil, apperr.Storage(err, "load kkm settings")
	}
	out := make([]Setting, 0, SlotCount)
	for n := FirstSlot; n <= EvaluationSlot; n++ {
		v, ok := stored[n]
		if !ok {
			v = DefaultKKM
		}
		out = append(out, Setting{QuizNumber: n, KKM: v})
	}
	return out, nil
}

// Validate checks a bulk update: exactly five entries, every slot in 1..5,
// every score in 0..100.
func Validate(settings map[int]int) error {
	if len(settings) != SlotCount {
		return apperr.Invalid("expected %d kkm values (quizzes 1-4 and final evaluation), got %d", SlotCount, len(settings))
	}
	for _, n := range sortedSlots(settings) {
		if !ValidSlot(n) {
			return apperr.Invalid("invalid quiz number %d", n)
		}
		if v := settings[n]; v < 0 || v > 100 {
			return apperr.Invalid("kkm for quiz %d must be within 0-100, got %d", n, v)
		}
	}
	return nil
}

// SetAll replaces all five thresholds atomically.
func (s *Store) SetAll(ctx context.Context, settings map[int]int) error {
	if err := Validate(settings); err != nil {
		return err
	}
	now := time.Now().Unix()
	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, n := range sortedSlots(settings) {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO kkm_settings (quiz_number, kkm, updated_at)
				VALUES ($1,$2,$3)
				ON CONFLICT (quiz_number) DO UPDATE SET kkm=EXCLUDED.kkm, updated_at=EXCLUDED.updated_at`,
				n, settings[n], now); err != nil {
				return fmt.Errorf("upsert kkm %d: %w", n, err)
			}
		}
		return nil
	})
	return apperr.Storage(err, "update kkm settings")
}

// Lookup returns the stored thresholds for the given slots (all slots when
// none are given). Slots without a row are absent from the map; callers pick
// their own default.
func Lookup(ctx context.Context, q db.Querier, slots ...int) (map[int]int, error) {
	query := `SELECT quiz_number, kkm FROM kkm_settings`
	args := make([]any, 0, len(slots))
	if len(slots) > 0 {
		ph := make([]string, len(slots))
		for i, n := range slots {
			ph[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, n)
		}
		query += ` WHERE quiz_number IN (` + strings.Join(ph, ",") + `)`
	}
	rows, err := q.QueryContext(ctx, query+` ORDER BY quiz_number`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int]int{}
	for rows.Next() {
		var n, v int
		if err := rows.Scan(&n, &v); err != nil {
			return nil, err
		}
		out[n] = v
	}
	return out, rows.Err()
}

func sortedSlots(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
