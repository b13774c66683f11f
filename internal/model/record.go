package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the canonical calendar date layout for records.
const DateFormat = "2006-01-02"

// Record is one normalized statement line.
type Record struct {
	Date        time.Time       // calendar date, UTC midnight
	Amount      decimal.Decimal // negative = money out, positive = money in
	Description string
	Source      string // file the record was read from
	Line        int    // 1-based line in Source
}

// Key identifies a record for deduplication.
type Key struct {
	Date        string
	Amount      string
	Description string
}

// Key returns the (date, amount, description) triple. Amounts compare by
// value, so "-42.5" and "-42.50" produce the same key.
func (r Record) Key() Key {
	return Key{
		Date:        r.Date.Format(DateFormat),
		Amount:      r.Amount.String(),
		Description: r.Description,
	}
}

// SourceFile is a statement file as read from disk.
type SourceFile struct {
	Path    string
	Content []byte
}

// FormatAmount renders an amount with at least two decimal places and never
// fewer than the amount carries, so "-4" prints as "-4.00" and "-0.105" stays
// "-0.105".
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(max(2, -d.Exponent()))
}
