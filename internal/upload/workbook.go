package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/cleared-dev/parsemoney/internal/config"
	"github.com/cleared-dev/parsemoney/internal/table"
)

const defaultSheet = "Sheet1"

// Workbook uploads to a sheet of a local .xlsx file.
type Workbook struct {
	path      string
	sheetName string
	layout    Layout
	logger    *log.Logger
}

// NewWorkbook creates an uploader for cfg.Workbook.
func NewWorkbook(cfg config.UploadConfig, logger *log.Logger) (*Workbook, error) {
	layout, err := ParseLayout(cfg.Layout)
	if err != nil {
		return nil, err
	}
	if cfg.Workbook == "" {
		return nil, fmt.Errorf("workbook path is required")
	}
	if cfg.SheetName == "" {
		return nil, fmt.Errorf("sheet name is required")
	}
	return &Workbook{
		path:      cfg.Workbook,
		sheetName: cfg.SheetName,
		layout:    layout,
		logger:    orDiscard(logger),
	}, nil
}

// Upload replaces the sheet's content with the table, creating the workbook
// or the sheet when missing. Other sheets are left alone.
func (w *Workbook) Upload(ctx context.Context, t *table.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := w.clear(f); err != nil {
		return err
	}

	rows := BuildRows(t, w.layout)
	header := cells(Header)
	if err := f.SetSheetRow(w.sheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	dateFmt := "yyyy-mm-dd"
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return fmt.Errorf("creating date style: %w", err)
	}

	for i, r := range rows {
		if err := w.writeRow(f, i+2, r, dateStyle); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("saving %s: %w", w.path, err)
	}
	w.logger.Info("uploaded", "workbook", w.path, "sheet", w.sheetName, "rows", len(rows))
	return nil
}

func (w *Workbook) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		f = excelize.NewFile()
		if err := f.SetSheetName(defaultSheet, w.sheetName); err != nil {
			return nil, fmt.Errorf("naming sheet: %w", err)
		}
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}

	idx, err := f.GetSheetIndex(w.sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("looking up sheet %s: %w", w.sheetName, err)
	}
	if idx == -1 {
		if _, err := f.NewSheet(w.sheetName); err != nil {
			f.Close()
			return nil, fmt.Errorf("adding sheet %s: %w", w.sheetName, err)
		}
	}
	return f, nil
}

// clear removes every existing row of the target sheet.
func (w *Workbook) clear(f *excelize.File) error {
	existing, err := f.GetRows(w.sheetName)
	if err != nil {
		return fmt.Errorf("reading sheet %s: %w", w.sheetName, err)
	}
	for i := len(existing); i >= 1; i-- {
		if err := f.RemoveRow(w.sheetName, i); err != nil {
			return fmt.Errorf("clearing row %d: %w", i, err)
		}
	}
	return nil
}

func (w *Workbook) writeRow(f *excelize.File, n int, r Row, dateStyle int) error {
	a, _ := excelize.CoordinatesToCellName(1, n)
	b, _ := excelize.CoordinatesToCellName(2, n)
	c, _ := excelize.CoordinatesToCellName(3, n)

	if err := f.SetCellValue(w.sheetName, a, r.Date); err != nil {
		return err
	}
	if err := f.SetCellStyle(w.sheetName, a, a, dateStyle); err != nil {
		return err
	}

	switch {
	case r.Formula():
		if err := f.SetCellFormula(w.sheetName, b, strings.TrimPrefix(r.Money, "=")); err != nil {
			return err
		}
	case r.Money != "":
		d, err := decimal.NewFromString(r.Money)
		if err != nil {
			return fmt.Errorf("parsing amount %q: %w", r.Money, err)
		}
		if err := f.SetCellValue(w.sheetName, b, d.InexactFloat64()); err != nil {
			return err
		}
	}

	return f.SetCellStr(w.sheetName, c, r.Description)
}
