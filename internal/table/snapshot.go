package table

import (
	"fmt"
	"io"
	"strings"

	"github.com/cleared-dev/parsemoney/internal/model"
)

// Sum joins the day's amounts with "+", e.g. "-4.00+-12.75". Empty days give "".
func (d Day) Sum() string {
	parts := make([]string, len(d.Records))
	for i, r := range d.Records {
		parts[i] = model.FormatAmount(r.Amount)
	}
	return strings.Join(parts, "+")
}

// Descriptions joins the day's descriptions with "; ".
func (d Day) Descriptions() string {
	parts := make([]string, len(d.Records))
	for i, r := range d.Records {
		parts[i] = r.Description
	}
	return strings.Join(parts, "; ")
}

// WriteSnapshot renders one line per day:
//
//	2025-01-03  : -4.00+-12.75; GITHUB; USPS
func WriteSnapshot(w io.Writer, days []Day) error {
	for _, d := range days {
		if _, err := fmt.Fprintf(w, "%s  : %s; %s\n", d.Date.Format(model.DateFormat), d.Sum(), d.Descriptions()); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
	}
	return nil
}
