package kkm_test

import (
	"context"
	"testing"

	"github.com/mind-engage/mindengage-kkm/internal/apperr"
	"github.com/mind-engage/mindengage-kkm/internal/db/dbtest"
	"github.com/mind-engage/mindengage-kkm/internal/kkm"
)

func TestGet_DefaultsTo75WhenUnset(t *testing.T) {
	st := kkm.NewStore(dbtest.Open(t))
	for n := 1; n <= 5; n++ {
		if got := st.Get(context.Background(), n); got != kkm.DefaultKKM {
			t.Fatalf("slot %d: got %d want %d", n, got, kkm.DefaultKKM)
		}
	}
}

func TestGet_FallsBackOnStorageError(t *testing.T) {
	dbh := dbtest.Open(t)
	st := kkm.NewStore(dbh)
	_ = dbh.Close()
	if got := st.Get(context.Background(), 1); got != kkm.DefaultKKM {
		t.Fatalf("got %d want %d on closed db", got, kkm.DefaultKKM)
	}
}

func TestGetAll_OrderedWithDefaults(t *testing.T) {
	dbh := dbtest.Open(t)
	dbtest.Exec(t, dbh, `INSERT INTO kkm_settings (quiz_number, kkm, updated_at) VALUES (3, 60, 0)`)
	got, err := kkm.NewStore(dbh).GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	want := []kkm.Setting{
		{QuizNumber: 1, KKM: 75},
		{QuizNumber: 2, KKM: 75},
		{QuizNumber: 3, KKM: 60},
		{QuizNumber: 4, KKM: 75},
		{QuizNumber: 5, KKM: 75},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d settings want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("settings[%d] = %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestSetAll_UpsertsAllFive(t *testing.T) {
	ctx := context.Background()
	st := kkm.NewStore(dbtest.Open(t))
	if err := st.SetAll(ctx, map[int]int{1: 70, 2: 71, 3: 72, 4: 73, 5: 80}); err != nil {
		t.Fatalf("first SetAll: %v", err)
	}
	if err := st.SetAll(ctx, map[int]int{1: 10, 2: 20, 3: 30, 4: 40, 5: 100}); err != nil {
		t.Fatalf("second SetAll: %v", err)
	}
	want := map[int]int{1: 10, 2: 20, 3: 30, 4: 40, 5: 100}
	for n, v := range want {
		if got := st.Get(ctx, n); got != v {
			t.Fatalf("slot %d: got %d want %d", n, got, v)
		}
	}
}

func TestSetAll_RejectsInvalidWithoutPartialWrites(t *testing.T) {
	ctx := context.Background()
	st := kkm.NewStore(dbtest.Open(t))
	prior := map[int]int{1: 70, 2: 70, 3: 70, 4: 70, 5: 70}
	if err := st.SetAll(ctx, prior); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := []struct {
		name string
		in   map[int]int
	}{
		{"four entries", map[int]int{1: 90, 2: 90, 3: 90, 4: 90}},
		{"six entries", map[int]int{1: 90, 2: 90, 3: 90, 4: 90, 5: 90, 6: 90}},
		{"slot out of range", map[int]int{1: 90, 2: 90, 3: 90, 4: 90, 6: 90}},
		{"score above 100", map[int]int{1: 90, 2: 90, 3: 101, 4: 90, 5: 90}},
		{"negative score", map[int]int{1: 90, 2: 90, 3: 90, 4: 90, 5: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := st.SetAll(ctx, tc.in)
			if !apperr.IsInvalid(err) {
				t.Fatalf("want InvalidArgument, got %v", err)
			}
			for n, v := range prior {
				if got := st.Get(ctx, n); got != v {
					t.Fatalf("slot %d changed to %d after rejected update", n, got)
				}
			}
		})
	}
}
