package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/parsemoney/internal/model"
)

// Header is the CSV header of the table file.
const Header = "date,amount,description"

const (
	numFields = 3
	colDate   = 0
	colAmount = 1
	colDesc   = 2
)

// ReadTable reads records from a table CSV reader.
func ReadTable(r io.Reader) ([]model.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading table CSV: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	// Skip header row.
	var recs []model.Record
	for i, row := range rows[1:] {
		rec, err := UnmarshalRecord(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// WriteTable writes records to w, including the header.
func WriteTable(w io.Writer, recs []model.Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, rec := range recs {
		if err := cw.Write(MarshalRecord(rec)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveFile writes the table to path, replacing any previous content.
func SaveFile(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating table: %w", err)
	}
	if err := WriteTable(f, t.Records()); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

// LoadFile reads a table written by SaveFile. Row order is kept.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening table: %w", err)
	}
	defer f.Close()

	recs, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Merge(recs), nil
}

// MarshalRecord converts a Record to a CSV row.
func MarshalRecord(rec model.Record) []string {
	row := make([]string, numFields)
	row[colDate] = rec.Date.Format(model.DateFormat)
	row[colAmount] = model.FormatAmount(rec.Amount)
	row[colDesc] = rec.Description
	return row
}

// UnmarshalRecord converts a CSV row to a Record. Provenance is not stored in
// the table and comes back empty.
func UnmarshalRecord(row []string) (model.Record, error) {
	if len(row) != numFields {
		return model.Record{}, fmt.Errorf("expected %d fields, got %d", numFields, len(row))
	}

	date, err := time.Parse(model.DateFormat, row[colDate])
	if err != nil {
		return model.Record{}, fmt.Errorf("parsing date %q: %w", row[colDate], err)
	}

	amount, err := decimal.NewFromString(row[colAmount])
	if err != nil {
		return model.Record{}, fmt.Errorf("parsing amount %q: %w", row[colAmount], err)
	}

	return model.Record{
		Date:        date,
		Amount:      amount,
		Description: row[colDesc],
	}, nil
}
