package scoring

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Sheet1"

var exportHeader = []any{
	"nis", "full_name", "class", "status", "progress",
	"kuis1", "kuis2", "kuis3", "kuis4",
	"latihan1", "latihan2", "latihan3", "latihan4",
	"evaluasi_akhir",
}

// ExportWorkbook writes every roster student's scores as an XLSX workbook.
func (s *Service) ExportWorkbook(ctx context.Context, w io.Writer) error {
	rows, err := s.GetAllBest(ctx)
	if err != nil {
		return err
	}
	return WriteWorkbook(w, rows)
}

// WriteWorkbook renders rows under a header line on the first sheet.
func WriteWorkbook(w io.Writer, rows []RosterRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		line := []any{
			r.NIS, r.FullName, r.Class, string(r.Status), r.Progress,
			r.Quiz[0], r.Quiz[1], r.Quiz[2], r.Quiz[3],
			r.Practice[0], r.Practice[1], r.Practice[2], r.Practice[3],
			r.Eval,
		}
		if err := f.SetSheetRow(exportSheet, cell, &line); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
