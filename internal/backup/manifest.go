package backup

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Entry is one row in a backup manifest.
type Entry struct {
	Timestamp time.Time
	RunID     string
	File      string // base name inside the backup directory
	Checksum  string // xxhash64, hex
	Size      int64
	Action    string
}

// Manifest actions.
const (
	ActionCopied    = "copied"
	ActionUnchanged = "unchanged"
)

// Header is the CSV header for manifest.csv.
const Header = "timestamp,run_id,file,checksum,size,action"

// ManifestFile is the manifest name inside each backup directory.
const ManifestFile = "manifest.csv"

const (
	numFields    = 6
	colTimestamp = 0
	colRunID     = 1
	colFile      = 2
	colChecksum  = 3
	colSize      = 4
	colAction    = 5
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colFile] = e.File
	row[colChecksum] = e.Checksum
	row[colSize] = strconv.FormatInt(e.Size, 10)
	row[colAction] = e.Action
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	size, err := strconv.ParseInt(record[colSize], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing size %q: %w", record[colSize], err)
	}

	return Entry{
		Timestamp: ts,
		RunID:     record[colRunID],
		File:      record[colFile],
		Checksum:  record[colChecksum],
		Size:      size,
		Action:    record[colAction],
	}, nil
}

// AppendManifest writes entries to <dir>/manifest.csv, creating the file and
// header if needed.
func AppendManifest(dir string, entries []Entry) error {
	path := filepath.Join(dir, ManifestFile)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadManifest returns all entries from <dir>/manifest.csv.
// Returns an empty slice if the file does not exist.
func ReadManifest(dir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading manifest CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
