package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnrecognizedFormat means no format could be selected for a file.
	ErrUnrecognizedFormat = errors.New("unrecognized statement format")
	// ErrAmbiguousFormat means more than one format fits a file.
	ErrAmbiguousFormat = errors.New("ambiguous statement format")
)

// Detection is the outcome of format detection for one file.
type Detection struct {
	Format     Format
	HeaderLine int // 0-based line index of the header, -1 if there is none
	DataStart  int // 0-based line index of the first data line
}

// Detector selects a Format for statement text.
type Detector struct {
	registry *Registry
}

// NewDetector creates a Detector over reg.
func NewDetector(reg *Registry) *Detector {
	return &Detector{registry: reg}
}

// sampleSize bounds the rows read for generic inference.
const sampleSize = 20

// headerScanLines bounds the preamble searched for a known header.
const headerScanLines = 30

// Detect inspects the header and leading data rows of text. Known header
// signatures win; otherwise the generic format is derived from header names
// or, for headerless files, from the data itself.
func (d *Detector) Detect(text string) (Detection, error) {
	lines := splitLines(text)

	first := -1
	for i, l := range lines {
		if !isBlank(l) {
			first = i
			break
		}
	}
	if first < 0 {
		return Detection{}, fmt.Errorf("%w: file is empty", ErrUnrecognizedFormat)
	}

	if det, ok, err := d.matchSignature(lines, first); ok || err != nil {
		return det, err
	}

	firstData := -1
	for i := first; i < len(lines); i++ {
		if isBlank(lines[i]) {
			continue
		}
		if hasDateField(splitFields(lines[i], sniffDelimiter(lines[i]))) {
			firstData = i
			break
		}
	}
	if firstData < 0 {
		return Detection{}, fmt.Errorf("%w: no line with a date", ErrUnrecognizedFormat)
	}

	header := -1
	for i := firstData - 1; i >= first; i-- {
		if !isBlank(lines[i]) {
			header = i
			break
		}
	}

	if header < 0 {
		delim := sniffDelimiter(lines[firstData])
		f, err := inferFromData(sampleRows(lines, firstData, delim), delim)
		if err != nil {
			return Detection{}, err
		}
		return Detection{Format: f, HeaderLine: -1, DataStart: firstData}, nil
	}

	delim := sniffDelimiter(lines[header])
	tokens := splitFields(lines[header], delim)

	f, err := inferFromHeader(tokens, sampleRows(lines, header+1, delim), delim)
	if err != nil {
		return Detection{}, err
	}
	return Detection{Format: f, HeaderLine: header, DataStart: header + 1}, nil
}

// matchSignature looks for a registered header signature among the leading
// lines. A match fixes the format regardless of the data below it, so
// declared date layouts apply and a header-only export is still recognized.
func (d *Detector) matchSignature(lines []string, first int) (Detection, bool, error) {
	end := min(len(lines), first+headerScanLines)
	for i := first; i < end; i++ {
		if isBlank(lines[i]) {
			continue
		}
		delim := sniffDelimiter(lines[i])
		matches := d.registry.Match(splitFields(lines[i], delim), delim)
		switch {
		case len(matches) == 1:
			return Detection{Format: matches[0], HeaderLine: i, DataStart: i + 1}, true, nil
		case len(matches) > 1:
			names := make([]string, len(matches))
			for j, m := range matches {
				names[j] = m.Name
			}
			return Detection{}, false, fmt.Errorf("%w: header matches %s", ErrAmbiguousFormat, strings.Join(names, ", "))
		}
	}
	return Detection{}, false, nil
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// candidateDelimiters in order of preference on ties.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// sniffDelimiter returns the candidate delimiter that occurs most often
// outside quotes, or ',' when none occurs.
func sniffDelimiter(line string) rune {
	counts := make(map[rune]int, len(candidateDelimiters))
	inQuotes := false
	for _, r := range line {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}
	best, bestCount := ',', 0
	for _, d := range candidateDelimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

// splitFields tokenizes a single line with CSV quoting rules.
func splitFields(line string, delim rune) []string {
	cr := csv.NewReader(strings.NewReader(line))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rec, err := cr.Read()
	if err != nil {
		return strings.Split(line, string(delim))
	}
	return rec
}

func hasDateField(fields []string) bool {
	for _, f := range fields {
		if _, ok := isDate(f); ok {
			return true
		}
	}
	return false
}

// sampleRows returns up to sampleSize non-blank rows starting at line start.
func sampleRows(lines []string, start int, delim rune) [][]string {
	var rows [][]string
	for i := start; i < len(lines) && len(rows) < sampleSize; i++ {
		if isBlank(lines[i]) {
			continue
		}
		rows = append(rows, splitFields(lines[i], delim))
	}
	return rows
}
