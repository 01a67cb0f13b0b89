package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"sjsage522/placereviewworker/helpers"
	"sjsage522/placereviewworker/internal/harvest"
)

// XLSXSink writes <place>_new_reviews.xlsx workbooks
type XLSXSink struct {
	Dir string
}

func NewXLSXSink(dir string) *XLSXSink {
	return &XLSXSink{Dir: dir}
}

func (s *XLSXSink) Path(place string) string {
	return filepath.Join(s.Dir, helpers.SafeFileName(place)+"_new_reviews.xlsx")
}

func (s *XLSXSink) Save(ctx context.Context, place string, records []harvest.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	if err := setRow(f, sheet, 1, Header); err != nil {
		return err
	}
	for i, r := range records {
		vals := row(r)
		cells := []interface{}{vals[0], vals[1], nil, vals[3]}
		if r.VisitCount != nil {
			cells[2] = *r.VisitCount
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return err
		}
	}
	for i, width := range []float64{24, 14, 12, 80} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, width)
	}
	return f.SaveAs(s.Path(place))
}

func setRow(f *excelize.File, sheet string, rowNum int, values []string) error {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}
