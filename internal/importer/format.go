package importer

import (
	"fmt"
	"strings"
)

// AmountStyle says how a format encodes the sign of a transaction.
type AmountStyle int

const (
	// AmountSigned is a single column, negative for money out.
	AmountSigned AmountStyle = iota
	// AmountInverted is a single column with charges positive (card exports).
	AmountInverted
	// AmountSplit is separate debit and credit columns.
	AmountSplit
	// AmountAuto is a single column whose sign is decided per file: if most
	// amounts are positive the whole file is negated.
	AmountAuto
)

var amountStyleNames = map[AmountStyle]string{
	AmountSigned:   "signed",
	AmountInverted: "inverted",
	AmountSplit:    "split",
	AmountAuto:     "auto",
}

func (s AmountStyle) String() string {
	if name, ok := amountStyleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("AmountStyle(%d)", int(s))
}

// ParseAmountStyle parses a style name as used in the config file.
// The empty string is AmountSigned.
func ParseAmountStyle(s string) (AmountStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "signed", "as-is":
		return AmountSigned, nil
	case "inverted", "invert":
		return AmountInverted, nil
	case "split":
		return AmountSplit, nil
	case "auto":
		return AmountAuto, nil
	}
	return AmountSigned, fmt.Errorf("unknown amount style %q", s)
}

// noColumn marks a column role the format does not use.
const noColumn = -1

// Columns maps record fields to 0-based CSV column indices.
type Columns struct {
	Date        int
	Description int
	Amount      int
	Debit       int
	Credit      int
}

// Format is the parsing rule set for one statement layout.
type Format struct {
	Name         string
	Signature    []string // header tokens; nil for the generic format
	Delimiter    rune
	DateLayouts  []string
	Columns      Columns
	AmountStyle  AmountStyle
	DecimalComma bool
}

// GenericName is the name of the fallback format.
const GenericName = "generic"

// Generic reports whether f is the fallback format. The name is reserved in
// any case.
func (f Format) Generic() bool { return strings.EqualFold(f.Name, GenericName) }

// minFields returns the number of fields a data row needs.
func (f Format) minFields() int {
	c := f.Columns
	n := max(c.Date, c.Description)
	if f.AmountStyle == AmountSplit {
		n = max(n, c.Debit, c.Credit)
	} else {
		n = max(n, c.Amount)
	}
	return n + 1
}

func (f Format) validate() error {
	c := f.Columns
	if f.Name == "" {
		return fmt.Errorf("format has no name")
	}
	if c.Date < 0 || c.Description < 0 {
		return fmt.Errorf("format %s: date and description columns are required", f.Name)
	}
	if f.AmountStyle == AmountSplit {
		if c.Debit < 0 || c.Credit < 0 {
			return fmt.Errorf("format %s: split amounts need debit and credit columns", f.Name)
		}
	} else if c.Amount < 0 {
		return fmt.Errorf("format %s: amount column is required", f.Name)
	}
	if len(f.DateLayouts) == 0 {
		return fmt.Errorf("format %s: no date layouts", f.Name)
	}
	return nil
}

// Describe renders the column mapping for humans.
func (f Format) Describe() string {
	c := f.Columns
	var amount string
	if f.AmountStyle == AmountSplit {
		amount = fmt.Sprintf("debit=%d credit=%d", c.Debit, c.Credit)
	} else {
		amount = fmt.Sprintf("amount=%d", c.Amount)
	}
	return fmt.Sprintf("date=%d description=%d %s sign=%s delimiter=%q layouts=%s",
		c.Date, c.Description, amount, f.AmountStyle, f.Delimiter, strings.Join(f.DateLayouts, "|"))
}

const (
	usDateFormat  = "01/02/2006"
	isoDateFormat = "2006-01-02"
)

func single(date, desc, amount int) Columns {
	return Columns{Date: date, Description: desc, Amount: amount, Debit: noColumn, Credit: noColumn}
}

func split(date, desc, debit, credit int) Columns {
	return Columns{Date: date, Description: desc, Amount: noColumn, Debit: debit, Credit: credit}
}

// builtinFormats are the bank exports recognized by header signature.
func builtinFormats() []Format {
	return []Format{
		{
			Name:        "chase-checking",
			Signature:   []string{"Details", "Posting Date", "Description", "Amount", "Type", "Balance", "Check or Slip #"},
			Delimiter:   ',',
			DateLayouts: []string{usDateFormat},
			Columns:     single(1, 2, 3),
			AmountStyle: AmountSigned,
		},
		{
			Name:        "chase-credit",
			Signature:   []string{"Transaction Date", "Post Date", "Description", "Category", "Type", "Amount", "Memo"},
			Delimiter:   ',',
			DateLayouts: []string{usDateFormat},
			Columns:     single(0, 2, 5),
			AmountStyle: AmountSigned,
		},
		{
			Name:        "amex",
			Signature:   []string{"Date", "Description", "Card Member", "Account #", "Amount"},
			Delimiter:   ',',
			DateLayouts: []string{usDateFormat},
			Columns:     single(0, 1, 4),
			AmountStyle: AmountInverted,
		},
		{
			Name:        "discover",
			Signature:   []string{"Trans. Date", "Post Date", "Description", "Amount", "Category"},
			Delimiter:   ',',
			DateLayouts: []string{usDateFormat},
			Columns:     single(0, 2, 3),
			AmountStyle: AmountInverted,
		},
		{
			Name:        "capital-one",
			Signature:   []string{"Transaction Date", "Posted Date", "Card No.", "Description", "Category", "Debit", "Credit"},
			Delimiter:   ',',
			DateLayouts: []string{isoDateFormat, usDateFormat},
			Columns:     split(0, 3, 5, 6),
			AmountStyle: AmountSplit,
		},
		{
			Name:        "citi",
			Signature:   []string{"Status", "Date", "Description", "Debit", "Credit"},
			Delimiter:   ',',
			DateLayouts: []string{usDateFormat},
			Columns:     split(1, 2, 3, 4),
			AmountStyle: AmountSplit,
		},
		{
			Name:        "bank-of-america",
			Signature:   []string{"Date", "Description", "Amount", "Running Bal."},
			Delimiter:   ',',
			DateLayouts: []string{usDateFormat},
			Columns:     single(0, 1, 2),
			AmountStyle: AmountSigned,
		},
		{
			Name:        "td-bank",
			Signature:   []string{"Date", "Description", "Debit", "Credit", "Balance"},
			Delimiter:   ',',
			DateLayouts: []string{usDateFormat, isoDateFormat},
			Columns:     split(0, 1, 2, 3),
			AmountStyle: AmountSplit,
		},
	}
}
