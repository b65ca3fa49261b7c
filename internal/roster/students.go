// Package roster keeps the student and teacher accounts.
package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-kkm/internal/apperr"
	"github.com/mind-engage/mindengage-kkm/internal/db"
)

type Student struct {
	ID       int64  `json:"id"`
	NIS      string `json:"nis"`
	FullName string `json:"full_name"`
	Class    string `json:"class"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

type NewStudent struct {
	NIS      string
	FullName string
	Class    string
	Password string
}

// Progress is a student's completion state as the reconciler left it.
type Progress struct {
	NIS                 string `json:"nis"`
	Progress            int    `json:"progress"`
	Status              string `json:"status"`
	Quiz1Completed      bool   `json:"quiz1_completed"`
	Quiz2Completed      bool   `json:"quiz2_completed"`
	Quiz3Completed      bool   `json:"quiz3_completed"`
	Quiz4Completed      bool   `json:"quiz4_completed"`
	EvaluationCompleted bool   `json:"evaluation_completed"`
}

type Store struct {
	db *sql.DB
}

func NewStore(dbh *sql.DB) *Store { return &Store{db: dbh} }

// RegisterStudent creates an account with zero progress. A taken NIS is a
// Conflict.
func (s *Store) RegisterStudent(ctx context.Context, in NewStudent) (Student, error) {
	in.NIS = strings.TrimSpace(in.NIS)
	if in.NIS == "" || in.FullName == "" || in.Class == "" || in.Password == "" {
		return Student{}, apperr.Invalid("nis, full name, class and password are required")
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return Student{}, apperr.Storage(err, "hash password")
	}

	var out Student
	err = db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		taken, err := exists(ctx, tx, `SELECT 1 FROM students WHERE nis=$1`, in.NIS)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("nis %s is already registered", in.NIS)
		}
		out, err = insertStudent(ctx, tx, in, hash)
		return err
	})
	if err != nil {
		return Student{}, apperr.Storage(err, "register student")
	}
	return out, nil
}

func insertStudent(ctx context.Context, q db.Querier, in NewStudent, hash string) (Student, error) {
	out := Student{NIS: in.NIS, FullName: in.FullName, Class: in.Class, Status: "NOT_DONE"}
	err := q.QueryRowContext(ctx, `
		INSERT INTO students (nis, full_name, class, password_hash, created_at)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		in.NIS, in.FullName, in.Class, hash, time.Now().Unix()).Scan(&out.ID)
	if err != nil {
		return Student{}, fmt.Errorf("insert student: %w", err)
	}
	return out, nil
}

// AuthenticateStudent checks a NIS/password pair. Unknown NIS and wrong
// password are indistinguishable to the caller.
func (s *Store) AuthenticateStudent(ctx context.Context, nis, password string) (Student, error) {
	var st Student
	var hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nis, full_name, class, status, progress, password_hash
		FROM students WHERE nis=$1`, strings.TrimSpace(nis)).
		Scan(&st.ID, &st.NIS, &st.FullName, &st.Class, &st.Status, &st.Progress, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, apperr.ErrBadCredentials
	}
	if err != nil {
		return Student{}, apperr.Storage(err, "load student")
	}
	if !checkPassword(hash, password) {
		return Student{}, apperr.ErrBadCredentials
	}
	return st, nil
}

func (s *Store) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, nis, full_name, class, status, progress FROM students ORDER BY id`)
	if err != nil {
		return nil, apperr.Storage(err, "list students")
	}
	defer rows.Close()
	out := []Student{}
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.NIS, &st.FullName, &st.Class, &st.Status, &st.Progress); err != nil {
			return nil, apperr.Storage(err, "scan student")
		}
		out = append(out, st)
	}
	return out, apperr.Storage(rows.Err(), "list students")
}

// Classes returns the distinct class names, sorted.
func (s *Store) Classes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT class FROM students ORDER BY class`)
	if err != nil {
		return nil, apperr.Storage(err, "list classes")
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, apperr.Storage(err, "scan class")
		}
		out = append(out, c)
	}
	return out, apperr.Storage(rows.Err(), "list classes")
}

// UpdateStudent changes name and class only; progress is never touched here.
func (s *Store) UpdateStudent(ctx context.Context, nis, fullName, class string) (Student, error) {
	if fullName == "" || class == "" {
		return Student{}, apperr.Invalid("full name and class are required")
	}
	var st Student
	err := s.db.QueryRowContext(ctx, `
		UPDATE students SET full_name=$1, class=$2 WHERE nis=$3
		RETURNING id, nis, full_name, class, status, progress`,
		fullName, class, nis).
		Scan(&st.ID, &st.NIS, &st.FullName, &st.Class, &st.Status, &st.Progress)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, apperr.ErrStudentNotFound
	}
	if err != nil {
		return Student{}, apperr.Storage(err, "update student")
	}
	return st, nil
}

// DeleteStudent removes the student with its ledger, attempts and sessions.
func (s *Store) DeleteStudent(ctx context.Context, nis string) error {
	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM students WHERE nis=$1`, nis).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrStudentNotFound
		}
		if err != nil {
			return err
		}
		for _, stmt := range []struct {
			q   string
			arg any
		}{
			{`DELETE FROM sessions WHERE user_role='student' AND user_id=$1`, id},
			{`DELETE FROM quiz_attempts WHERE nis=$1`, nis},
			{`DELETE FROM scores WHERE nis=$1`, nis},
			{`DELETE FROM students WHERE id=$1`, id},
		} {
			if _, err := tx.ExecContext(ctx, stmt.q, stmt.arg); err != nil {
				return fmt.Errorf("delete student: %w", err)
			}
		}
		return nil
	})
	return apperr.Storage(err, "delete student")
}

// GetProgress reads the completion state. An unknown NIS reads as zero
// progress.
func (s *Store) GetProgress(ctx context.Context, nis string) (Progress, error) {
	p := Progress{NIS: nis, Status: "NOT_DONE"}
	var f [5]int
	err := s.db.QueryRowContext(ctx, `
		SELECT progress, status, quiz1_completed, quiz2_completed, quiz3_completed, quiz4_completed, evaluation_completed
		FROM students WHERE nis=$1`, nis).
		Scan(&p.Progress, &p.Status, &f[0], &f[1], &f[2], &f[3], &f[4])
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return Progress{}, apperr.Storage(err, "get progress")
	}
	p.Quiz1Completed, p.Quiz2Completed, p.Quiz3Completed, p.Quiz4Completed = f[0] != 0, f[1] != 0, f[2] != 0, f[3] != 0
	p.EvaluationCompleted = f[4] != 0
	return p, nil
}

func exists(ctx context.Context, q db.Querier, query string, args ...any) (bool, error) {
	err := q.QueryRowContext(ctx, query, args...).Scan(new(int))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, err
	}
}
