package db

import (
	"context"
	"testing"
)

func TestLockClause(t *testing.T) {
	cases := map[Driver]string{
		DriverPostgres:  " FOR UPDATE",
		DriverSQLite:    "",
		Driver("mysql"): "",
	}
	for d, want := range cases {
		if got := d.LockClause(); got != want {
			t.Errorf("%s: LockClause() = %q want %q", d, got, want)
		}
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), Driver("mysql"), ""); err == nil {
		t.Fatal("unsupported driver accepted")
	}
}
