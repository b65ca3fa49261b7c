package scoring_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-kkm/internal/db"
	"github.com/mind-engage/mindengage-kkm/internal/db/dbtest"
	"github.com/mind-engage/mindengage-kkm/internal/scoring"
)

// Runs against a real pool, where only the row lock keeps concurrent
// reconciles for one student from double crediting.
func TestSubmitQuizScores_PostgresRowLockCreditsOnce(t *testing.T) {
	dbh := dbtest.OpenPostgres(t)
	ctx := context.Background()
	nis := fmt.Sprintf("pg-%d", time.Now().UnixNano())
	dbtest.SeedStudent(t, dbh, nis, "Ani", "7A")
	t.Cleanup(func() { _, _ = dbh.Exec(`DELETE FROM students WHERE nis=$1`, nis) })

	svc := scoring.NewService(dbh, db.DriverPostgres)
	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- svc.SubmitQuizScores(ctx, nis, scoring.Scores{Quiz1: score(80 + i), Quiz2: score(90)})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	if p := readProgress(t, dbh, nis); p.progress != 40 || p.flags != [5]int{1, 1, 0, 0, 0} {
		t.Fatalf("progress = %+v want 40 with quiz 1 and 2 credited", p)
	}
	if got := countAttempts(t, dbh, nis); got != 2*n {
		t.Fatalf("attempts = %d want %d", got, 2*n)
	}
}
