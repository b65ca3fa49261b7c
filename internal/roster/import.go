package roster

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mind-engage/mindengage-kkm/internal/apperr"
	"github.com/mind-engage/mindengage-kkm/internal/db"
)

type ImportRow struct {
	NIS      string `json:"nis"`
	FullName string `json:"full_name"`
	Class    string `json:"class"`
	Password string `json:"password,omitempty"` // required for new students only
}

type ImportResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

var importColumns = []string{"nis", "full_name", "class"}

// DecodeImport parses an uploaded roster file. The extension picks the
// format; without one, a leading '[' or '{' means JSON and anything else CSV.
func DecodeImport(name string, data []byte) ([]ImportRow, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return ParseXLSX(data)
	case ".json":
		return ParseJSON(bytes.NewReader(data))
	case ".csv":
		return ParseCSV(bytes.NewReader(data))
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, apperr.Invalid("empty file")
	}
	if trimmed[0] == '[' || trimmed[0] == '{' {
		return ParseJSON(bytes.NewReader(trimmed))
	}
	return ParseCSV(bytes.NewReader(data))
}

func ParseJSON(r io.Reader) ([]ImportRow, error) {
	var rows []ImportRow
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, apperr.Invalid("bad json: %v", err)
	}
	return rows, nil
}

func ParseCSV(r io.Reader) ([]ImportRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	hdr, err := cr.Read()
	if err != nil {
		return nil, apperr.Invalid("bad csv: %v", err)
	}
	idx, err := columnIndex(hdr)
	if err != nil {
		return nil, err
	}
	var rows []ImportRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Invalid("bad csv at line %d: %v", line, err)
		}
		rows = append(rows, rowFromRecord(rec, idx))
	}
	return rows, nil
}

// ParseXLSX reads the first sheet: a header row, then one student per row.
func ParseXLSX(data []byte) ([]ImportRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Invalid("failed to open Excel file: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Invalid("workbook has no sheets")
	}
	recs, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperr.Invalid("failed to get rows: %v", err)
	}
	if len(recs) == 0 {
		return nil, apperr.Invalid("missing header row")
	}
	idx, err := columnIndex(recs[0])
	if err != nil {
		return nil, err
	}
	var rows []ImportRow
	for _, rec := range recs[1:] {
		if len(rec) == 0 {
			continue
		}
		rows = append(rows, rowFromRecord(rec, idx))
	}
	return rows, nil
}

func columnIndex(hdr []string) (map[string]int, error) {
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range importColumns {
		if _, ok := idx[k]; !ok {
			return nil, apperr.Invalid("missing column: %s", k)
		}
	}
	return idx, nil
}

func rowFromRecord(rec []string, idx map[string]int) ImportRow {
	get := func(col string) string {
		if i, ok := idx[col]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	return ImportRow{NIS: get("nis"), FullName: get("full_name"), Class: get("class"), Password: get("password")}
}

// Import upserts students by NIS in one transaction. Existing students get
// their name and class (and password, when given) replaced; progress and
// scores are left alone. Any bad row aborts the whole import.
func (s *Store) Import(ctx context.Context, rows []ImportRow) (ImportResult, error) {
	hashes := make([]string, len(rows))
	for i, r := range rows {
		if r.NIS == "" || r.FullName == "" || r.Class == "" {
			return ImportResult{}, apperr.Invalid("row %d: nis, full_name and class are required", i+1)
		}
		if r.Password == "" {
			continue
		}
		h, err := hashPassword(r.Password)
		if err != nil {
			return ImportResult{}, apperr.Storage(err, "hash password")
		}
		hashes[i] = h
	}

	var res ImportResult
	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		for i, r := range rows {
			found, err := exists(ctx, tx, `SELECT 1 FROM students WHERE nis=$1`, r.NIS)
			if err != nil {
				return err
			}
			if !found {
				if hashes[i] == "" {
					return apperr.Invalid("row %d: password required for new student %s", i+1, r.NIS)
				}
				if _, err := insertStudent(ctx, tx, NewStudent{NIS: r.NIS, FullName: r.FullName, Class: r.Class}, hashes[i]); err != nil {
					return err
				}
				res.Inserted++
				continue
			}
			if hashes[i] != "" {
				_, err = tx.ExecContext(ctx, `UPDATE students SET full_name=$1, class=$2, password_hash=$3 WHERE nis=$4`,
					r.FullName, r.Class, hashes[i], r.NIS)
			} else {
				_, err = tx.ExecContext(ctx, `UPDATE students SET full_name=$1, class=$2 WHERE nis=$3`,
					r.FullName, r.Class, r.NIS)
			}
			if err != nil {
				return fmt.Errorf("update student %s: %w", r.NIS, err)
			}
			res.Updated++
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, apperr.Storage(err, "import students")
	}
	return res, nil
}
