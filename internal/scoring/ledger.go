package scoring

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mind-engage/mindengage-kkm/internal/apperr"
	"github.com/mind-engage/mindengage-kkm/internal/kkm"
)

// GetBest returns a student's ledger with the current thresholds. A student
// with no ledger row yet gets all-null scores.
func (s *Service) GetBest(ctx context.Context, nis string) (BestScores, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM students WHERE nis=$1`, nis).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return BestScores{}, apperr.ErrStudentNotFound
	}
	if err != nil {
		return BestScores{}, apperr.Storage(err, "get scores")
	}

	out := BestScores{NIS: nis}
	var raw [9]sql.NullInt64
	var updated sql.NullInt64
	dest := make([]any, 0, len(raw)+1)
	for i := range raw {
		dest = append(dest, &raw[i])
	}
	dest = append(dest, &updated)
	err = s.db.QueryRowContext(ctx, `
		SELECT kuis1, kuis2, kuis3, kuis4, latihan1, latihan2, latihan3, latihan4, evaluasi_akhir, updated_at
		FROM scores WHERE nis=$1`, nis).Scan(dest...)
	switch {
	case err == nil:
		out.Scores = scoresFromRaw(raw)
		t := time.Unix(updated.Int64, 0).UTC()
		out.UpdatedAt = &t
	case errors.Is(err, sql.ErrNoRows):
	default:
		return BestScores{}, apperr.Storage(err, "get scores")
	}

	stored, err := kkm.Lookup(ctx, s.db)
	if err != nil {
		return BestScores{}, apperr.Storage(err, "load kkm")
	}
	out.KKM = thresholdsFrom(stored)
	return out, nil
}

// GetAllBest lists every roster student in id order with their ledger; absent
// scores read as 0.
func (s *Service) GetAllBest(ctx context.Context) ([]RosterRow, error) {
	return s.rosterRows(ctx, "")
}

func (s *Service) rosterRows(ctx context.Context, class string) ([]RosterRow, error) {
	query := `
		SELECT st.nis, st.full_name, st.class, st.status, st.progress,
		       COALESCE(sc.kuis1, 0), COALESCE(sc.kuis2, 0), COALESCE(sc.kuis3, 0), COALESCE(sc.kuis4, 0),
		       COALESCE(sc.latihan1, 0), COALESCE(sc.latihan2, 0), COALESCE(sc.latihan3, 0), COALESCE(sc.latihan4, 0),
		       COALESCE(sc.evaluasi_akhir, 0)
		FROM students st
		LEFT JOIN scores sc ON sc.nis = st.nis`
	var args []any
	if class != "" {
		query += ` WHERE st.class=$1`
		args = append(args, class)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY st.id`, args...)
	if err != nil {
		return nil, apperr.Storage(err, "list scores")
	}
	defer rows.Close()

	out := []RosterRow{}
	for rows.Next() {
		var r RosterRow
		var status string
		if err := rows.Scan(&r.NIS, &r.FullName, &r.Class, &status, &r.Progress,
			&r.Quiz[0], &r.Quiz[1], &r.Quiz[2], &r.Quiz[3],
			&r.Practice[0], &r.Practice[1], &r.Practice[2], &r.Practice[3],
			&r.Eval); err != nil {
			return nil, apperr.Storage(err, "scan scores")
		}
		r.Status = Status(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(err, "list scores")
	}
	return out, nil
}
