package scoring

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-kkm/internal/apperr"
	"github.com/mind-engage/mindengage-kkm/internal/db"
	"github.com/mind-engage/mindengage-kkm/internal/kkm"
)

// AttemptLog is the append-only history of raw quiz scores.
type AttemptLog struct {
	db *sql.DB
}

func NewAttemptLog(dbh *sql.DB) *AttemptLog { return &AttemptLog{db: dbh} }

// Append records one attempt outside any reconcile transaction.
func (l *AttemptLog) Append(ctx context.Context, nis string, quizNumber, score int) error {
	return apperr.Storage(appendAttempt(ctx, l.db, nis, quizNumber, score, time.Now()), "append attempt")
}

func appendAttempt(ctx context.Context, q db.Querier, nis string, quizNumber, score int, at time.Time) error {
	if quizNumber < 1 || quizNumber > QuizSlots {
		return apperr.Invalid("invalid quiz number %d", quizNumber)
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO quiz_attempts (nis, quiz_number, score, attempt_time) VALUES ($1,$2,$3,$4)`,
		nis, quizNumber, score, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

// List returns a student's attempts, newest first, each carrying the slot's
// current threshold. An unknown student has no attempts.
func (l *AttemptLog) List(ctx context.Context, nis string) ([]Attempt, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT qa.id, qa.quiz_number, qa.score, qa.attempt_time, COALESCE(k.kkm, $2)
		FROM quiz_attempts qa
		LEFT JOIN kkm_settings k ON k.quiz_number = qa.quiz_number
		WHERE qa.nis=$1
		ORDER BY qa.attempt_time DESC, qa.id DESC`, nis, kkm.DefaultKKM)
	if err != nil {
		return nil, apperr.Storage(err, "list attempts")
	}
	defer rows.Close()

	out := []Attempt{}
	for rows.Next() {
		var a Attempt
		var ms int64
		if err := rows.Scan(&a.ID, &a.QuizNumber, &a.Score, &ms, &a.KKM); err != nil {
			return nil, apperr.Storage(err, "scan attempt")
		}
		a.AttemptTime = time.UnixMilli(ms).UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(err, "list attempts")
	}
	return out, nil
}
