package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/parsemoney/internal/model"
)

// LineError records a data line that was skipped.
type LineError struct {
	Line int // 1-based
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e LineError) Unwrap() error { return e.Err }

// Result is the parse outcome for one file.
type Result struct {
	File     string
	Format   string
	Records  []model.Record
	Skipped  []LineError
	Filtered int
}

// Parser turns statement files into records.
type Parser struct {
	logger      *log.Logger
	filters     map[string]struct{}
	encoding    string
	genericSign AmountStyle
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithFilters drops records whose description equals one of filters,
// ignoring case. Card payment lines are the usual candidates.
func WithFilters(filters []string) ParserOption {
	return func(p *Parser) {
		for _, f := range filters {
			p.filters[strings.ToLower(strings.TrimSpace(f))] = struct{}{}
		}
	}
}

// WithEncoding sets the input encoding ("auto", "utf-8", "windows-1252", ...).
func WithEncoding(encoding string) ParserOption {
	return func(p *Parser) { p.encoding = encoding }
}

// WithGenericSign sets the sign rule for single-column generic files.
func WithGenericSign(style AmountStyle) ParserOption {
	return func(p *Parser) { p.genericSign = style }
}

// NewParser creates a Parser. A nil logger discards output.
func NewParser(logger *log.Logger, opts ...ParserOption) *Parser {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	p := &Parser{
		logger:      logger,
		filters:     make(map[string]struct{}),
		encoding:    "auto",
		genericSign: AmountSigned,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decode converts raw file content to text using the configured encoding.
func (p *Parser) Decode(content []byte) (string, error) {
	return decode(content, p.encoding)
}

// ParseFile decodes src, detects its format with d and parses it.
func (p *Parser) ParseFile(src model.SourceFile, d *Detector) (Result, error) {
	text, err := p.Decode(src.Content)
	if err != nil {
		return Result{}, fmt.Errorf("decoding %s: %w", src.Path, err)
	}
	det, err := d.Detect(text)
	if err != nil {
		return Result{}, err
	}
	p.logger.Debug("detected format", "file", src.Path, "format", det.Format.Name, "mapping", det.Format.Describe())
	return p.parseText(src.Path, text, det)
}

// Parse parses src with an already detected format.
func (p *Parser) Parse(src model.SourceFile, det Detection) (Result, error) {
	text, err := p.Decode(src.Content)
	if err != nil {
		return Result{}, fmt.Errorf("decoding %s: %w", src.Path, err)
	}
	return p.parseText(src.Path, text, det)
}

func (p *Parser) parseText(name, text string, det Detection) (Result, error) {
	f := det.Format
	if f.Generic() && f.AmountStyle == AmountSigned {
		f.AmountStyle = p.genericSign
	}

	lines := splitLines(text)
	if det.DataStart > len(lines) {
		return Result{}, fmt.Errorf("data start %d beyond end of %s", det.DataStart, name)
	}
	cr := csv.NewReader(strings.NewReader(strings.Join(lines[det.DataStart:], "\n")))
	cr.Comma = f.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	res := Result{File: name, Format: f.Name}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return Result{}, fmt.Errorf("reading %s: %w", name, err)
			}
			p.skip(&res, det.DataStart+pe.StartLine, err)
			continue
		}
		line, _ := cr.FieldPos(0)
		line += det.DataStart

		if blankRow(row) {
			continue
		}
		rec, err := parseRow(row, f)
		if err != nil {
			p.skip(&res, line, err)
			continue
		}
		if _, ok := p.filters[strings.ToLower(rec.Description)]; ok {
			res.Filtered++
			p.logger.Debug("filtered line", "file", name, "line", line, "description", rec.Description)
			continue
		}
		rec.Source = name
		rec.Line = line
		res.Records = append(res.Records, rec)
	}

	if f.AmountStyle == AmountAuto {
		res.Records = autoSign(res.Records)
	}
	return res, nil
}

func (p *Parser) skip(res *Result, line int, err error) {
	res.Skipped = append(res.Skipped, LineError{Line: line, Err: err})
	p.logger.Warn("skipping malformed line", "file", res.File, "line", line, "err", err)
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseRow(row []string, f Format) (model.Record, error) {
	if n := f.minFields(); len(row) < n {
		return model.Record{}, fmt.Errorf("expected at least %d fields, got %d", n, len(row))
	}
	c := f.Columns

	date, err := parseDate(row[c.Date], f.DateLayouts)
	if err != nil {
		return model.Record{}, fmt.Errorf("parsing date %q: %w", row[c.Date], err)
	}

	amount, err := rowAmount(row, f)
	if err != nil {
		return model.Record{}, err
	}

	return model.Record{
		Date:        date,
		Amount:      amount,
		Description: strings.TrimSpace(row[c.Description]),
	}, nil
}

func rowAmount(row []string, f Format) (decimal.Decimal, error) {
	c := f.Columns
	if f.AmountStyle != AmountSplit {
		amount, err := parseAmount(row[c.Amount], f.DecimalComma)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parsing amount %q: %w", row[c.Amount], err)
		}
		if f.AmountStyle == AmountInverted {
			amount = amount.Neg()
		}
		return amount, nil
	}

	debitStr, creditStr := strings.TrimSpace(row[c.Debit]), strings.TrimSpace(row[c.Credit])
	if debitStr == "" && creditStr == "" {
		return decimal.Zero, fmt.Errorf("parsing amount: no debit or credit")
	}
	var debit, credit decimal.Decimal
	var err error
	if debitStr != "" {
		if debit, err = parseAmount(debitStr, f.DecimalComma); err != nil {
			return decimal.Zero, fmt.Errorf("parsing debit %q: %w", debitStr, err)
		}
	}
	if creditStr != "" {
		if credit, err = parseAmount(creditStr, f.DecimalComma); err != nil {
			return decimal.Zero, fmt.Errorf("parsing credit %q: %w", creditStr, err)
		}
	}
	return credit.Abs().Sub(debit.Abs()), nil
}

// autoSign negates every record when positive amounts dominate, for exports
// that list spending as positive numbers.
func autoSign(recs []model.Record) []model.Record {
	balance := 0
	for _, r := range recs {
		balance += r.Amount.Sign()
	}
	if balance <= 0 {
		return recs
	}
	out := make([]model.Record, len(recs))
	for i, r := range recs {
		r.Amount = r.Amount.Neg()
		out[i] = r
	}
	return out
}
