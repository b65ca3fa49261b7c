// Package scoring owns the best-score ledger, the quiz attempt log and the
// progress reconciler that moves students toward completion.
package scoring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mind-engage/mindengage-kkm/internal/apperr"
	"github.com/mind-engage/mindengage-kkm/internal/db"
	"github.com/mind-engage/mindengage-kkm/internal/kkm"
)

var quizFlagColumns = [QuizSlots]string{"quiz1_completed", "quiz2_completed", "quiz3_completed", "quiz4_completed"}

var ledgerColumns = []string{
	"kuis1", "kuis2", "kuis3", "kuis4",
	"latihan1", "latihan2", "latihan3", "latihan4",
	"evaluasi_akhir",
}

type Service struct {
	db     *sql.DB
	driver db.Driver
	now    func() time.Time
}

func NewService(dbh *sql.DB, driver db.Driver) *Service {
	return &Service{db: dbh, driver: driver, now: time.Now}
}

// WithClock replaces the time source used for attempt and ledger timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type studentState struct {
	progress int
	quizDone [QuizSlots]bool
	evalDone bool
}

// lockStudent reads the progress row and, on Postgres, holds it until the
// transaction ends. Every reconcile step for the same student queues here.
func (s *Service) lockStudent(ctx context.Context, tx *sql.Tx, nis string) (studentState, error) {
	var st studentState
	var flags [QuizSlots]int
	var eval int
	err := tx.QueryRowContext(ctx, `
		SELECT progress, quiz1_completed, quiz2_completed, quiz3_completed, quiz4_completed, evaluation_completed
		FROM students WHERE nis=$1`+s.driver.LockClause(), nis).
		Scan(&st.progress, &flags[0], &flags[1], &flags[2], &flags[3], &eval)
	if errors.Is(err, sql.ErrNoRows) {
		return st, apperr.ErrStudentNotFound
	}
	if err != nil {
		return st, fmt.Errorf("lock student: %w", err)
	}
	for i, f := range flags {
		st.quizDone[i] = f != 0
	}
	st.evalDone = eval != 0
	return st, nil
}

// SubmitQuizScores appends an attempt for every quiz score present, merges the
// submission into the ledger (max for quizzes and the final evaluation,
// overwrite for practice) and credits progress once per newly passed quiz.
func (s *Service) SubmitQuizScores(ctx context.Context, nis string, sub Scores) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	var credited []int
	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		st, err := s.lockStudent(ctx, tx, nis)
		if err != nil {
			return err
		}
		now := s.now()
		for slot := 1; slot <= QuizSlots; slot++ {
			if v := *sub.Quiz(slot); v != nil {
				if err := appendAttempt(ctx, tx, nis, slot, *v, now); err != nil {
					return err
				}
			}
		}

		prev, exists, err := loadLedger(ctx, tx, nis)
		if err != nil {
			return err
		}
		stored, err := kkm.Lookup(ctx, tx, 1, 2, 3, 4)
		if err != nil {
			return fmt.Errorf("load kkm: %w", err)
		}

		merged, touched := merge(prev, sub)
		credited = newlyPassed(merged, st.quizDone, stored)
		if err := saveLedger(ctx, tx, nis, touched, exists, now); err != nil {
			return err
		}
		if len(credited) == 0 {
			return nil
		}
		return s.advance(ctx, tx, nis, st.progress, credited, false)
	})
	if err != nil {
		return apperr.Storage(err, "submit scores")
	}
	if len(credited) > 0 {
		zerolog.Ctx(ctx).Info().Str("nis", nis).Ints("quizzes", credited).Msg("progress credited")
	}
	return nil
}

// SubmitEvaluationScore records a final evaluation score and credits progress
// the first time the best evaluation score reaches its threshold.
func (s *Service) SubmitEvaluationScore(ctx context.Context, nis string, score int) (EvaluationResult, error) {
	if err := (Scores{Eval: &score}).Validate(); err != nil {
		return EvaluationResult{}, err
	}
	var res EvaluationResult
	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		st, err := s.lockStudent(ctx, tx, nis)
		if err != nil {
			return err
		}
		prev, exists, err := loadLedger(ctx, tx, nis)
		if err != nil {
			return err
		}
		merged, touched := merge(prev, Scores{Eval: &score})
		if !exists || prev.Eval == nil || score > *prev.Eval {
			if err := saveLedger(ctx, tx, nis, touched, exists, s.now()); err != nil {
				return err
			}
		}

		stored, err := kkm.Lookup(ctx, tx, kkm.EvaluationSlot)
		if err != nil {
			return fmt.Errorf("load kkm: %w", err)
		}
		threshold, ok := stored[kkm.EvaluationSlot]
		if !ok {
			threshold = kkm.DefaultKKM
		}
		res = EvaluationResult{Score: *merged.Eval, KKM: threshold}

		if st.evalDone || *merged.Eval < threshold {
			return nil
		}
		return s.advance(ctx, tx, nis, st.progress, nil, true)
	})
	if err != nil {
		return EvaluationResult{}, apperr.Storage(err, "submit evaluation score")
	}
	return res, nil
}

// merge folds a sparse submission into the previous ledger. touched carries
// only the fields the submission named, holding their merged values.
func merge(prev, sub Scores) (merged, touched Scores) {
	merged = prev
	for slot := 1; slot <= QuizSlots; slot++ {
		if v := *sub.Quiz(slot); v != nil {
			best := maxScore(*prev.Quiz(slot), *v)
			*merged.Quiz(slot) = best
			*touched.Quiz(slot) = best
		}
		if v := *sub.Practice(slot); v != nil {
			p := *v
			*merged.Practice(slot) = &p
			*touched.Practice(slot) = &p
		}
	}
	if sub.Eval != nil {
		best := maxScore(prev.Eval, *sub.Eval)
		merged.Eval = best
		touched.Eval = best
	}
	return merged, touched
}

func maxScore(prev *int, v int) *int {
	if prev != nil && *prev > v {
		v = *prev
	}
	return &v
}

// newlyPassed lists quiz slots whose merged score meets the threshold and
// whose completion flag is still clear.
func newlyPassed(merged Scores, done [QuizSlots]bool, stored map[int]int) []int {
	var out []int
	for slot := 1; slot <= QuizSlots; slot++ {
		if done[slot-1] {
			continue
		}
		best := *merged.Quiz(slot)
		if best == nil {
			continue
		}
		if *best >= quizThreshold(stored, slot) {
			out = append(out, slot)
		}
	}
	return out
}

func quizThreshold(stored map[int]int, slot int) int {
	if v, ok := stored[slot]; ok {
		return v
	}
	return ReconcilerDefaultKKM
}

// QuizThreshold is the threshold SubmitQuizScores applies to a quiz slot.
// A storage error falls back to ReconcilerDefaultKKM.
func (s *Service) QuizThreshold(ctx context.Context, slot int) int {
	stored, err := kkm.Lookup(ctx, s.db, slot)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int("quiz_number", slot).Msg("kkm lookup failed")
		return ReconcilerDefaultKKM
	}
	return quizThreshold(stored, slot)
}

// nextProgress adds ProgressPerSlot per credited slot, capped at MaxProgress.
func nextProgress(progress, credited int) (int, Status) {
	progress += credited * ProgressPerSlot
	if progress > MaxProgress {
		progress = MaxProgress
	}
	if progress >= MaxProgress {
		return progress, StatusDone
	}
	return progress, StatusNotDone
}

func (s *Service) advance(ctx context.Context, tx *sql.Tx, nis string, progress int, quizzes []int, eval bool) error {
	credits := len(quizzes)
	if eval {
		credits++
	}
	progress, status := nextProgress(progress, credits)
	set := []string{"progress=$1", "status=$2"}
	for _, slot := range quizzes {
		set = append(set, quizFlagColumns[slot-1]+"=1")
	}
	if eval {
		set = append(set, "evaluation_completed=1")
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE students SET `+strings.Join(set, ", ")+` WHERE nis=$3`,
		progress, string(status), nis)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

func loadLedger(ctx context.Context, q db.Querier, nis string) (Scores, bool, error) {
	var raw [9]sql.NullInt64
	dest := make([]any, len(raw))
	for i := range raw {
		dest[i] = &raw[i]
	}
	err := q.QueryRowContext(ctx,
		`SELECT `+strings.Join(ledgerColumns, ", ")+` FROM scores WHERE nis=$1`, nis).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return Scores{}, false, nil
	}
	if err != nil {
		return Scores{}, false, fmt.Errorf("load ledger: %w", err)
	}
	return scoresFromRaw(raw), true, nil
}

func scoresFromRaw(raw [9]sql.NullInt64) Scores {
	var sc Scores
	for slot := 1; slot <= QuizSlots; slot++ {
		*sc.Quiz(slot) = intPtr(raw[slot-1])
		*sc.Practice(slot) = intPtr(raw[QuizSlots+slot-1])
	}
	sc.Eval = intPtr(raw[8])
	return sc
}

func (sc *Scores) values() []any {
	out := make([]any, 0, len(ledgerColumns))
	for slot := 1; slot <= QuizSlots; slot++ {
		out = append(out, nullable(*sc.Quiz(slot)))
	}
	for n := 1; n <= QuizSlots; n++ {
		out = append(out, nullable(*sc.Practice(n)))
	}
	return append(out, nullable(sc.Eval))
}

// saveLedger inserts the row on first write; afterwards only the touched
// columns change.
func saveLedger(ctx context.Context, tx *sql.Tx, nis string, touched Scores, exists bool, now time.Time) error {
	vals := touched.values()
	if !exists {
		args := append([]any{nis}, vals...)
		args = append(args, now.Unix(), now.Unix())
		_, err := tx.ExecContext(ctx, `
			INSERT INTO scores (nis, kuis1, kuis2, kuis3, kuis4, latihan1, latihan2, latihan3, latihan4, evaluasi_akhir, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`, args...)
		if err != nil {
			return fmt.Errorf("insert ledger: %w", err)
		}
		return nil
	}

	set := make([]string, 0, len(vals)+1)
	args := make([]any, 0, len(vals)+2)
	for i, v := range vals {
		if v == nil {
			continue
		}
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s=$%d", ledgerColumns[i], len(args)))
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, now.Unix())
	set = append(set, fmt.Sprintf("updated_at=$%d", len(args)))
	args = append(args, nis)
	_, err := tx.ExecContext(ctx,
		`UPDATE scores SET `+strings.Join(set, ", ")+fmt.Sprintf(` WHERE nis=$%d`, len(args)), args...)
	if err != nil {
		return fmt.Errorf("update ledger: %w", err)
	}
	return nil
}
