package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/mind-engage/mindengage-kkm/internal/apperr"
)

// SessionStore keeps server-side login sessions. A JWT is only honoured while
// its session row exists and has not expired.
type SessionStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSessionStore(dbh *sql.DB, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SessionStore{db: dbh, ttl: ttl, now: time.Now}
}

// Create opens a session for id and returns id with SessionID filled in.
func (s *SessionStore) Create(ctx context.Context, id Identity) (Identity, error) {
	sid, err := newSessionID()
	if err != nil {
		return Identity{}, apperr.Storage(err, "generate session id")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, user_role, identifier, expires_at) VALUES ($1,$2,$3,$4,$5)`,
		sid, id.UserID, id.Role, id.Identifier, s.now().Add(s.ttl).Unix())
	if err != nil {
		return Identity{}, apperr.Storage(err, "create session")
	}
	id.SessionID = sid
	return id, nil
}

func (s *SessionStore) Lookup(ctx context.Context, sid string) (Identity, error) {
	id := Identity{SessionID: sid}
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, user_role, identifier FROM sessions WHERE id=$1 AND expires_at > $2`,
		sid, s.now().Unix()).Scan(&id.UserID, &id.Role, &id.Identifier)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, apperr.ErrSessionNotFound
	}
	if err != nil {
		return Identity{}, apperr.Storage(err, "lookup session")
	}
	return id, nil
}

func (s *SessionStore) Delete(ctx context.Context, sid string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=$1`, sid)
	return apperr.Storage(err, "delete session")
}

// DeleteExpired removes every session past its expiry and reports how many.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, s.now().Unix())
	if err != nil {
		return 0, apperr.Storage(err, "delete expired sessions")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// newSessionID returns 64 random bytes, hex encoded.
func newSessionID() (string, error) {
	b := make([]byte, 64)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
