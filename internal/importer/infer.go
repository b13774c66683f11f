package importer

import (
	"fmt"
	"math"
	"time"
	"unicode"
)

type role int

const (
	roleDate role = iota
	roleDescription
	roleAmount
	roleDebit
	roleCredit
)

// headerSynonyms lists header names per column role, highest priority first.
var headerSynonyms = []struct {
	role  role
	names []string
}{
	{roleDate, []string{"date", "transaction date", "trans. date", "trans date", "posting date", "posted date", "post date", "booking date", "value date"}},
	{roleDescription, []string{"description", "transaction description", "memo", "payee", "details", "narrative", "name", "merchant"}},
	{roleAmount, []string{"amount", "transaction amount", "money", "value"}},
	{roleDebit, []string{"debit", "debits", "withdrawal", "withdrawals", "money out", "paid out"}},
	{roleCredit, []string{"credit", "credits", "deposit", "deposits", "money in", "paid in"}},
}

func emptyColumns() Columns {
	return Columns{Date: noColumn, Description: noColumn, Amount: noColumn, Debit: noColumn, Credit: noColumn}
}

// inferFromHeader builds the generic format from header names. It refuses to
// guess: a missing role or a repeated column name is an error.
func inferFromHeader(header []string, rows [][]string, delim rune) (Format, error) {
	tokens := normalizeHeader(header)
	cols := emptyColumns()

	for _, syn := range headerSynonyms {
		idx, err := findColumn(tokens, syn.names)
		if err != nil {
			return Format{}, err
		}
		switch syn.role {
		case roleDate:
			cols.Date = idx
		case roleDescription:
			cols.Description = idx
		case roleAmount:
			cols.Amount = idx
		case roleDebit:
			cols.Debit = idx
		case roleCredit:
			cols.Credit = idx
		}
	}

	if cols.Date == noColumn {
		return Format{}, fmt.Errorf("%w: no date column in header %q", ErrUnrecognizedFormat, header)
	}
	if cols.Description == noColumn {
		return Format{}, fmt.Errorf("%w: no description column in header %q", ErrUnrecognizedFormat, header)
	}

	style := AmountSigned
	var amounts []string
	switch {
	case cols.Amount != noColumn:
		cols.Debit, cols.Credit = noColumn, noColumn
		amounts = column(rows, cols.Amount)
	case cols.Debit != noColumn && cols.Credit != noColumn:
		style = AmountSplit
		amounts = append(column(rows, cols.Debit), column(rows, cols.Credit)...)
	default:
		return Format{}, fmt.Errorf("%w: no amount or debit/credit columns in header %q", ErrUnrecognizedFormat, header)
	}

	layout, ok := layoutFor(column(rows, cols.Date))
	if !ok {
		return Format{}, fmt.Errorf("%w: column %q holds no recognizable dates", ErrUnrecognizedFormat, header[cols.Date])
	}

	return Format{
		Name:         GenericName,
		Delimiter:    delim,
		DateLayouts:  []string{layout},
		Columns:      cols,
		AmountStyle:  style,
		DecimalComma: decimalCommaColumn(amounts),
	}, nil
}

func findColumn(tokens []string, names []string) (int, error) {
	for _, name := range names {
		found := noColumn
		for i, t := range tokens {
			if t != name {
				continue
			}
			if found != noColumn {
				return noColumn, fmt.Errorf("%w: header has more than one %q column", ErrAmbiguousFormat, name)
			}
			found = i
		}
		if found != noColumn {
			return found, nil
		}
	}
	return noColumn, nil
}

// inferFromData builds the generic format for a headerless file. The date
// column holds the earliest date of the first row, the amount column is the
// numeric column that varies most relative to its mean, and the description
// is the text column with the most letters.
func inferFromData(rows [][]string, delim rune) (Format, error) {
	if len(rows) == 0 {
		return Format{}, fmt.Errorf("%w: no data rows", ErrUnrecognizedFormat)
	}
	first := rows[0]
	var sample [][]string
	for _, r := range rows {
		if len(r) == len(first) {
			sample = append(sample, r)
		}
	}

	cols := emptyColumns()
	var earliest time.Time
	for j, v := range first {
		t, ok := isDate(v)
		if ok && (cols.Date == noColumn || t.Before(earliest)) {
			cols.Date, earliest = j, t
		}
	}
	if cols.Date == noColumn {
		return Format{}, fmt.Errorf("%w: no date column", ErrUnrecognizedFormat)
	}

	bestVariation := -1.0
	decimalComma := false
	var textCols []int
	for j := range first {
		if j == cols.Date {
			continue
		}
		raw := column(sample, j)
		comma := decimalCommaColumn(raw)
		values, ok := numericColumn(raw, comma)
		if !ok {
			textCols = append(textCols, j)
			continue
		}
		if v := relativeVariation(values); v > bestVariation {
			cols.Amount, bestVariation, decimalComma = j, v, comma
		}
	}
	if cols.Amount == noColumn {
		return Format{}, fmt.Errorf("%w: no amount column", ErrUnrecognizedFormat)
	}

	cols.Description = descriptionColumn(sample, textCols, cols.Date)
	if cols.Description == noColumn {
		return Format{}, fmt.Errorf("%w: no description column", ErrUnrecognizedFormat)
	}

	layout, ok := layoutFor(column(sample, cols.Date))
	if !ok {
		return Format{}, fmt.Errorf("%w: no date layout fits column %d", ErrUnrecognizedFormat, cols.Date)
	}

	return Format{
		Name:         GenericName,
		Delimiter:    delim,
		DateLayouts:  []string{layout},
		Columns:      cols,
		AmountStyle:  AmountSigned,
		DecimalComma: decimalComma,
	}, nil
}

func column(rows [][]string, j int) []string {
	var out []string
	for _, r := range rows {
		if j < len(r) {
			out = append(out, r[j])
		}
	}
	return out
}

// numericColumn parses every non-empty value as a number. The first value
// must be present and of a plausible transaction magnitude, which keeps
// account numbers and running balances out.
func numericColumn(values []string, decimalComma bool) ([]float64, bool) {
	if len(values) == 0 {
		return nil, false
	}
	head, ok := isAmount(values[0], decimalComma)
	if !ok {
		return nil, false
	}
	if a := math.Abs(head.InexactFloat64()); a <= 1e-8 || a >= 1e5 {
		return nil, false
	}

	var out []float64
	for _, v := range values {
		if isBlank(v) {
			continue
		}
		d, ok := isAmount(v, decimalComma)
		if !ok {
			return nil, false
		}
		out = append(out, d.InexactFloat64())
	}
	return out, true
}

func relativeVariation(values []float64) float64 {
	mean, std := meanStd(values)
	if mean == 0 {
		if std == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return std / math.Abs(mean)
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func descriptionColumn(rows [][]string, textCols []int, dateCol int) int {
	var after []int
	for _, j := range textCols {
		if j > dateCol {
			after = append(after, j)
		}
	}
	if len(after) == 0 {
		after = textCols
	}

	type score struct {
		col       int
		mean, std float64
	}
	var scores []score
	for _, j := range after {
		var letters []float64
		for _, v := range column(rows, j) {
			letters = append(letters, float64(countLetters(v)))
		}
		mean, std := meanStd(letters)
		if mean > 0 {
			scores = append(scores, score{col: j, mean: mean, std: std})
		}
	}

	if len(rows) > 3 {
		var varying []score
		for _, s := range scores {
			if s.std > 0 {
				varying = append(varying, s)
			}
		}
		if len(varying) > 0 {
			scores = varying
		}
	}

	best := noColumn
	bestMean := 0.0
	for _, s := range scores {
		if s.mean > bestMean {
			best, bestMean = s.col, s.mean
		}
	}
	return best
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
