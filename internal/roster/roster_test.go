package roster_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-kkm/internal/apperr"
	"github.com/mind-engage/mindengage-kkm/internal/db/dbtest"
	"github.com/mind-engage/mindengage-kkm/internal/roster"
)

func init() { roster.BcryptCost = bcrypt.MinCost }

func TestRegisterAndAuthenticateStudent(t *testing.T) {
	ctx := context.Background()
	st := roster.NewStore(dbtest.Open(t))

	got, err := st.RegisterStudent(ctx, roster.NewStudent{NIS: "1001", FullName: "Ani", Class: "7A", Password: "rahasia"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if got.ID == 0 || got.Status != "NOT_DONE" || got.Progress != 0 {
		t.Fatalf("registered = %+v", got)
	}

	_, err = st.RegisterStudent(ctx, roster.NewStudent{NIS: "1001", FullName: "Other", Class: "7B", Password: "x"})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("duplicate nis err = %v want conflict", err)
	}

	me, err := st.AuthenticateStudent(ctx, "1001", "rahasia")
	if err != nil || me.FullName != "Ani" {
		t.Fatalf("login: %+v %v", me, err)
	}
	if _, err := st.AuthenticateStudent(ctx, "1001", "wrong"); !errors.Is(err, apperr.ErrBadCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := st.AuthenticateStudent(ctx, "9999", "rahasia"); !errors.Is(err, apperr.ErrBadCredentials) {
		t.Fatalf("unknown nis err = %v", err)
	}
}

func TestRegisterAndAuthenticateTeacher(t *testing.T) {
	ctx := context.Background()
	st := roster.NewStore(dbtest.Open(t))

	if _, err := st.RegisterTeacher(ctx, roster.NewTeacher{NIP: "19800101", FullName: "Bu Sari", School: "SMP 1", Password: "guru"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := st.RegisterTeacher(ctx, roster.NewTeacher{NIP: "19800101", FullName: "X", School: "Y", Password: "z"}); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("duplicate nip err = %v", err)
	}
	if _, err := st.RegisterTeacher(ctx, roster.NewTeacher{NIP: "2"}); !apperr.IsInvalid(err) {
		t.Fatalf("missing fields err = %v", err)
	}
	tc, err := st.AuthenticateTeacher(ctx, "19800101", "guru")
	if err != nil || tc.School != "SMP 1" {
		t.Fatalf("login: %+v %v", tc, err)
	}
}

func TestListClassesUpdate(t *testing.T) {
	ctx := context.Background()
	dbh := dbtest.Open(t)
	dbtest.SeedStudent(t, dbh, "1", "Ani", "7B")
	dbtest.SeedStudent(t, dbh, "2", "Budi", "7A")
	dbtest.SeedStudent(t, dbh, "3", "Cici", "7B")
	st := roster.NewStore(dbh)

	all, err := st.ListStudents(ctx)
	if err != nil || len(all) != 3 || all[0].NIS != "1" {
		t.Fatalf("list: %+v %v", all, err)
	}
	classes, err := st.Classes(ctx)
	if err != nil || strings.Join(classes, ",") != "7A,7B" {
		t.Fatalf("classes = %v %v", classes, err)
	}

	up, err := st.UpdateStudent(ctx, "2", "Budi S", "8A")
	if err != nil || up.FullName != "Budi S" || up.Class != "8A" {
		t.Fatalf("update: %+v %v", up, err)
	}
	if _, err := st.UpdateStudent(ctx, "404", "A", "B"); !apperr.IsNotFound(err) {
		t.Fatalf("update unknown err = %v", err)
	}
	if _, err := st.UpdateStudent(ctx, "1", "", "B"); !apperr.IsInvalid(err) {
		t.Fatalf("update blank err = %v", err)
	}
}

func TestDeleteStudentRemovesDependents(t *testing.T) {
	ctx := context.Background()
	dbh := dbtest.Open(t)
	dbtest.SeedStudent(t, dbh, "1001", "Ani", "7A")
	dbtest.Exec(t, dbh,
		`INSERT INTO scores (nis, kuis1, created_at, updated_at) VALUES ('1001', 90, 0, 0)`,
		`INSERT INTO quiz_attempts (nis, quiz_number, score, attempt_time) VALUES ('1001', 1, 90, 0)`,
		`INSERT INTO sessions (id, user_id, user_role, identifier, expires_at) SELECT 'sid', id, 'student', nis, 9999999999 FROM students WHERE nis='1001'`,
	)
	st := roster.NewStore(dbh)

	if err := st.DeleteStudent(ctx, "1001"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, table := range []string{"students", "scores", "quiz_attempts", "sessions"} {
		var n int
		if err := dbh.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Fatalf("%s has %d rows after delete", table, n)
		}
	}
	if err := st.DeleteStudent(ctx, "1001"); !apperr.IsNotFound(err) {
		t.Fatalf("second delete err = %v", err)
	}
}

func TestGetProgress(t *testing.T) {
	ctx := context.Background()
	dbh := dbtest.Open(t)
	dbtest.SeedStudent(t, dbh, "1001", "Ani", "7A")
	dbtest.Exec(t, dbh, `UPDATE students SET progress=40, quiz2_completed=1, evaluation_completed=1 WHERE nis='1001'`)
	st := roster.NewStore(dbh)

	p, err := st.GetProgress(ctx, "1001")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.Progress != 40 || !p.Quiz2Completed || p.Quiz1Completed || !p.EvaluationCompleted {
		t.Fatalf("progress = %+v", p)
	}
	unknown, err := st.GetProgress(ctx, "nobody")
	if err != nil || unknown.Progress != 0 {
		t.Fatalf("unknown = %+v %v", unknown, err)
	}
}

func TestDecodeImport(t *testing.T) {
	csvData := "NIS, Full_Name, Class, Password\n1001, Ani, 7A, pw\n1002,Budi,7B,\n"
	rows, err := roster.DecodeImport("students.csv", []byte(csvData))
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(rows) != 2 || rows[0] != (roster.ImportRow{NIS: "1001", FullName: "Ani", Class: "7A", Password: "pw"}) || rows[1].Password != "" {
		t.Fatalf("csv rows = %+v", rows)
	}

	rows, err = roster.DecodeImport("upload", []byte(` [{"nis":"1","full_name":"A","class":"7A"}]`))
	if err != nil || len(rows) != 1 || rows[0].NIS != "1" {
		t.Fatalf("sniffed json: %+v %v", rows, err)
	}

	if _, err := roster.DecodeImport("x.csv", []byte("nis,class\n1,7A\n")); !apperr.IsInvalid(err) {
		t.Fatalf("missing column err = %v", err)
	}
	if _, err := roster.DecodeImport("x", []byte("  ")); !apperr.IsInvalid(err) {
		t.Fatalf("empty err = %v", err)
	}
}

func TestDecodeImport_XLSX(t *testing.T) {
	f := excelize.NewFile()
	for i, rec := range [][]any{
		{"nis", "full_name", "class", "password"},
		{"1001", "Ani", "7A", "pw"},
		{"1002", "Budi", "7B"},
	} {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &rec); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	rows, err := roster.DecodeImport("roster.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("xlsx: %v", err)
	}
	if len(rows) != 2 || rows[1] != (roster.ImportRow{NIS: "1002", FullName: "Budi", Class: "7B"}) {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestImport_UpsertsInOneTransaction(t *testing.T) {
	ctx := context.Background()
	dbh := dbtest.Open(t)
	dbtest.SeedStudent(t, dbh, "1001", "Ani", "7A")
	st := roster.NewStore(dbh)

	res, err := st.Import(ctx, []roster.ImportRow{
		{NIS: "1001", FullName: "Ani R", Class: "8A"},
		{NIS: "1002", FullName: "Budi", Class: "8A", Password: "pw"},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res != (roster.ImportResult{Inserted: 1, Updated: 1}) {
		t.Fatalf("result = %+v", res)
	}
	if _, err := st.AuthenticateStudent(ctx, "1002", "pw"); err != nil {
		t.Fatalf("imported student cannot log in: %v", err)
	}

	_, err = st.Import(ctx, []roster.ImportRow{
		{NIS: "1003", FullName: "Cici", Class: "8A", Password: "pw"},
		{NIS: "1004", FullName: "Dedi", Class: "8A"},
	})
	if !apperr.IsInvalid(err) {
		t.Fatalf("new student without password err = %v", err)
	}
	all, _ := st.ListStudents(ctx)
	if len(all) != 2 {
		t.Fatalf("failed import left %d students, want 2", len(all))
	}
}
