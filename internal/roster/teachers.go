package roster

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-kkm/internal/apperr"
	"github.com/mind-engage/mindengage-kkm/internal/db"
)

type Teacher struct {
	ID       int64  `json:"id"`
	NIP      string `json:"nip"`
	FullName string `json:"full_name"`
	School   string `json:"school"`
}

type NewTeacher struct {
	NIP      string
	FullName string
	School   string
	Password string
}

func (s *Store) RegisterTeacher(ctx context.Context, in NewTeacher) (Teacher, error) {
	in.NIP = strings.TrimSpace(in.NIP)
	if in.NIP == "" || in.FullName == "" || in.School == "" || in.Password == "" {
		return Teacher{}, apperr.Invalid("nip, full name, school and password are required")
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return Teacher{}, apperr.Storage(err, "hash password")
	}

	out := Teacher{NIP: in.NIP, FullName: in.FullName, School: in.School}
	err = db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		taken, err := exists(ctx, tx, `SELECT 1 FROM teachers WHERE nip=$1`, in.NIP)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("nip %s is already registered", in.NIP)
		}
		return tx.QueryRowContext(ctx, `
			INSERT INTO teachers (nip, full_name, school, password_hash, created_at)
			VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			in.NIP, in.FullName, in.School, hash, time.Now().Unix()).Scan(&out.ID)
	})
	if err != nil {
		return Teacher{}, apperr.Storage(err, "register teacher")
	}
	return out, nil
}

func (s *Store) AuthenticateTeacher(ctx context.Context, nip, password string) (Teacher, error) {
	var t Teacher
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, nip, full_name, school, password_hash FROM teachers WHERE nip=$1`, strings.TrimSpace(nip)).
		Scan(&t.ID, &t.NIP, &t.FullName, &t.School, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return Teacher{}, apperr.ErrBadCredentials
	}
	if err != nil {
		return Teacher{}, apperr.Storage(err, "load teacher")
	}
	if !checkPassword(hash, password) {
		return Teacher{}, apperr.ErrBadCredentials
	}
	return t, nil
}
