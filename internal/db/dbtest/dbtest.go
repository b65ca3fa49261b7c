// Package dbtest opens throwaway in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-kkm/internal/db"
)

var seq atomic.Int64

// Open returns a migrated in-memory database private to t.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", name, seq.Add(1))
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return dbh
}

// PostgresDSNEnv names the DSN OpenPostgres connects to.
const PostgresDSNEnv = "KKM_TEST_POSTGRES_DSN"

// OpenPostgres opens the shared Postgres database named by PostgresDSNEnv and
// skips t when it is unset. Tests must clean up the rows they create.
func OpenPostgres(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dbh, err := db.Open(ctx, db.DriverPostgres, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return dbh
}

// Exec runs seed statements, failing the test on the first error.
func Exec(t *testing.T, dbh *sql.DB, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		if _, err := dbh.Exec(s); err != nil {
			t.Fatalf("seed %q: %v", firstLine(s), err)
		}
	}
}

// SeedStudent inserts a roster row with a throwaway password hash.
func SeedStudent(t *testing.T, dbh *sql.DB, nis, name, class string) {
	t.Helper()
	if _, err := dbh.Exec(`INSERT INTO students (nis, full_name, class, password_hash, created_at) VALUES ($1,$2,$3,'x',$4)`,
		nis, name, class, time.Now().Unix()); err != nil {
		t.Fatalf("seed student %s: %v", nis, err)
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
