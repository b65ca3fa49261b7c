package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// LockClause is appended to a SELECT that must hold the row until commit.
// SQLite has no row locks; there the pool is pinned to one connection, so
// transactions are already serialized.
func (d Driver) LockClause() string {
	if d == DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// Open opens a DB, tunes the pool and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:kkm.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/kkm?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	switch driver {
	case DriverSQLite:
		// one writer; this is also what serializes reconciler transactions
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS students (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  nis TEXT NOT NULL UNIQUE,
  full_name TEXT NOT NULL,
  class TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'NOT_DONE',
  progress INTEGER NOT NULL DEFAULT 0,
  quiz1_completed INTEGER NOT NULL DEFAULT 0,
  quiz2_completed INTEGER NOT NULL DEFAULT 0,
  quiz3_completed INTEGER NOT NULL DEFAULT 0,
  quiz4_completed INTEGER NOT NULL DEFAULT 0,
  evaluation_completed INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS teachers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  nip TEXT NOT NULL UNIQUE,
  full_name TEXT NOT NULL,
  school TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS kkm_settings (
  quiz_number INTEGER PRIMARY KEY CHECK (quiz_number BETWEEN 1 AND 5),
  kkm INTEGER NOT NULL CHECK (kkm BETWEEN 0 AND 100),
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS scores (
  nis TEXT PRIMARY KEY REFERENCES students(nis) ON DELETE CASCADE,
  kuis1 INTEGER,
  kuis2 INTEGER,
  kuis3 INTEGER,
  kuis4 INTEGER,
  latihan1 INTEGER,
  latihan2 INTEGER,
  latihan3 INTEGER,
  latihan4 INTEGER,
  evaluasi_akhir INTEGER,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_attempts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  nis TEXT NOT NULL REFERENCES students(nis) ON DELETE CASCADE,
  quiz_number INTEGER NOT NULL CHECK (quiz_number BETWEEN 1 AND 4),
  score INTEGER NOT NULL,
  attempt_time INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_quiz_attempts_nis ON quiz_attempts(nis, attempt_time);

CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  user_id INTEGER NOT NULL,
  user_role TEXT NOT NULL,
  identifier TEXT NOT NULL,
  expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);

CREATE TABLE IF NOT EXISTS questions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  quiz_number INTEGER NOT NULL CHECK (quiz_number BETWEEN 1 AND 5),
  question_text TEXT NOT NULL,
  options_json TEXT NOT NULL,
  correct_answer TEXT NOT NULL,
  image_key TEXT,
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS students (
  id BIGSERIAL PRIMARY KEY,
  nis TEXT NOT NULL UNIQUE,
  full_name TEXT NOT NULL,
  class TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'NOT_DONE',
  progress INTEGER NOT NULL DEFAULT 0,
  quiz1_completed SMALLINT NOT NULL DEFAULT 0,
  quiz2_completed SMALLINT NOT NULL DEFAULT 0,
  quiz3_completed SMALLINT NOT NULL DEFAULT 0,
  quiz4_completed SMALLINT NOT NULL DEFAULT 0,
  evaluation_completed SMALLINT NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS teachers (
  id BIGSERIAL PRIMARY KEY,
  nip TEXT NOT NULL UNIQUE,
  full_name TEXT NOT NULL,
  school TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS kkm_settings (
  quiz_number INTEGER PRIMARY KEY CHECK (quiz_number BETWEEN 1 AND 5),
  kkm INTEGER NOT NULL CHECK (kkm BETWEEN 0 AND 100),
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS scores (
  nis TEXT PRIMARY KEY REFERENCES students(nis) ON DELETE CASCADE,
  kuis1 INTEGER,
  kuis2 INTEGER,
  kuis3 INTEGER,
  kuis4 INTEGER,
  latihan1 INTEGER,
  latihan2 INTEGER,
  latihan3 INTEGER,
  latihan4 INTEGER,
  evaluasi_akhir INTEGER,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_attempts (
  id BIGSERIAL PRIMARY KEY,
  nis TEXT NOT NULL REFERENCES students(nis) ON DELETE CASCADE,
  quiz_number INTEGER NOT NULL CHECK (quiz_number BETWEEN 1 AND 4),
  score INTEGER NOT NULL,
  attempt_time BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_quiz_attempts_nis ON quiz_attempts(nis, attempt_time);

CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  user_id BIGINT NOT NULL,
  user_role TEXT NOT NULL,
  identifier TEXT NOT NULL,
  expires_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);

CREATE TABLE IF NOT EXISTS questions (
  id BIGSERIAL PRIMARY KEY,
  quiz_number INTEGER NOT NULL CHECK (quiz_number BETWEEN 1 AND 5),
  question_text TEXT NOT NULL,
  options_json TEXT NOT NULL,
  correct_answer TEXT NOT NULL,
  image_key TEXT,
  created_at BIGINT NOT NULL
);
`
