package importer

import (
	"fmt"
	"unicode/utf8"

	"github.com/cleared-dev/parsemoney/internal/config"
)

// FormatFromConfig converts a format declared in the config file.
func FormatFromConfig(fc config.FormatConfig) (Format, error) {
	if fc.Name == "" {
		return Format{}, fmt.Errorf("custom format: name is required")
	}
	if len(fc.Header) == 0 {
		return Format{}, fmt.Errorf("custom format %s: header is required", fc.Name)
	}

	delim := ','
	if fc.Delimiter != "" {
		r, size := utf8.DecodeRuneInString(fc.Delimiter)
		if size != len(fc.Delimiter) {
			return Format{}, fmt.Errorf("custom format %s: delimiter %q must be one character", fc.Name, fc.Delimiter)
		}
		delim = r
	}

	layouts := fc.DateLayouts
	if len(layouts) == 0 {
		layouts = []string{isoDateFormat}
	}

	style, err := ParseAmountStyle(fc.AmountStyle)
	if err != nil {
		return Format{}, fmt.Errorf("custom format %s: %w", fc.Name, err)
	}
	if fc.AmountStyle == "" && fc.Amount == "" && fc.Debit != "" && fc.Credit != "" {
		style = AmountSplit
	}

	tokens := normalizeHeader(fc.Header)
	lookup := func(name string) (int, error) {
		if name == "" {
			return noColumn, nil
		}
		want := normalizeToken(name)
		for i, t := range tokens {
			if t == want {
				return i, nil
			}
		}
		return noColumn, fmt.Errorf("custom format %s: column %q not in header", fc.Name, name)
	}

	cols := emptyColumns()
	for _, c := range []struct {
		name string
		dst  *int
	}{
		{fc.Date, &cols.Date},
		{fc.Description, &cols.Description},
		{fc.Amount, &cols.Amount},
		{fc.Debit, &cols.Debit},
		{fc.Credit, &cols.Credit},
	} {
		idx, err := lookup(c.name)
		if err != nil {
			return Format{}, err
		}
		*c.dst = idx
	}

	f := Format{
		Name:         fc.Name,
		Signature:    fc.Header,
		Delimiter:    delim,
		DateLayouts:  layouts,
		Columns:      cols,
		AmountStyle:  style,
		DecimalComma: fc.DecimalComma,
	}
	if err := f.validate(); err != nil {
		return Format{}, fmt.Errorf("custom format: %w", err)
	}
	return f, nil
}

// RegisterFormats adds configured formats to reg.
func RegisterFormats(reg *Registry, defs []config.FormatConfig) error {
	for _, fc := range defs {
		f, err := FormatFromConfig(fc)
		if err != nil {
			return err
		}
		if f.Generic() || reg.Has(f.Name) {
			return fmt.Errorf("custom format %s: name already in use", f.Name)
		}
		reg.Register(f)
	}
	return nil
}
