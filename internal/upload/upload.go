// Package upload pushes the merged table to a spreadsheet.
package upload

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cleared-dev/parsemoney/internal/config"
	"github.com/cleared-dev/parsemoney/internal/model"
	"github.com/cleared-dev/parsemoney/internal/table"
)

// Uploader writes a table to its target sheet, replacing what was there.
type Uploader interface {
	Upload(ctx context.Context, t *table.Table) error
}

// Upload targets.
const (
	TargetSheets = "gsheets"
	TargetXLSX   = "xlsx"
)

// Layout selects how records become spreadsheet rows.
type Layout string

const (
	// LayoutRows writes one row per record.
	LayoutRows Layout = "rows"
	// LayoutDaily writes one row per calendar day with a "=a+b" formula.
	LayoutDaily Layout = "daily"
)

// ParseLayout parses a layout name. The empty string is LayoutRows.
func ParseLayout(s string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(s))) {
	case "", LayoutRows:
		return LayoutRows, nil
	case LayoutDaily:
		return LayoutDaily, nil
	}
	return "", fmt.Errorf("unknown layout %q", s)
}

// Header is the first row of the uploaded sheet.
var Header = []string{"Date", "Money", "Description"}

// Row is one sheet row below the header.
type Row struct {
	Date        time.Time
	Money       string // amount, "=a+b" formula, or empty
	Description string
}

// Formula reports whether Money is a formula.
func (r Row) Formula() bool { return strings.HasPrefix(r.Money, "=") }

// Values renders the row as cell strings.
func (r Row) Values() []string {
	return []string{r.Date.Format(model.DateFormat), r.Money, r.Description}
}

// BuildRows converts the table into sheet rows, excluding the header.
func BuildRows(t *table.Table, layout Layout) []Row {
	if layout == LayoutDaily {
		days := t.Days()
		rows := make([]Row, 0, len(days))
		for _, d := range days {
			money := ""
			if len(d.Records) > 0 {
				money = "=" + d.Sum()
			}
			rows = append(rows, Row{Date: d.Date, Money: money, Description: d.Descriptions()})
		}
		return rows
	}

	recs := t.Records()
	rows := make([]Row, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, Row{Date: r.Date, Money: model.FormatAmount(r.Amount), Description: r.Description})
	}
	return rows
}

// New returns the uploader selected by cfg.Target.
func New(ctx context.Context, cfg config.UploadConfig, logger *log.Logger) (Uploader, error) {
	switch strings.ToLower(cfg.Target) {
	case "", TargetSheets:
		return NewSheets(ctx, cfg, logger)
	case TargetXLSX:
		return NewWorkbook(cfg, logger)
	}
	return nil, fmt.Errorf("unknown upload target %q", cfg.Target)
}

func orDiscard(logger *log.Logger) *log.Logger {
	if logger == nil {
		return log.New(io.Discard)
	}
	return logger
}
