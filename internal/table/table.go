// Package table merges parsed statement records into one deduplicated table.
package table

import (
	"slices"
	"time"

	"github.com/cleared-dev/parsemoney/internal/model"
)

// Table is an ordered, deduplicated set of records. Records keep the order
// they were added in until SortByDate is called.
type Table struct {
	records []model.Record
	seen    map[model.Key]struct{}
	dupes   int
}

// New creates an empty Table.
func New() *Table {
	return &Table{seen: make(map[model.Key]struct{})}
}

// Merge concatenates record sets in order and drops exact duplicates.
func Merge(sets ...[]model.Record) *Table {
	t := New()
	for _, recs := range sets {
		t.Add(recs...)
	}
	return t
}

// Add appends records whose key is not already present and returns the
// number added. The first occurrence of a key wins.
func (t *Table) Add(recs ...model.Record) int {
	added := 0
	for _, r := range recs {
		k := r.Key()
		if _, ok := t.seen[k]; ok {
			t.dupes++
			continue
		}
		t.seen[k] = struct{}{}
		t.records = append(t.records, r)
		added++
	}
	return added
}

// Records returns a copy of the table rows.
func (t *Table) Records() []model.Record {
	return slices.Clone(t.records)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.records) }

// Duplicates returns how many records Add dropped.
func (t *Table) Duplicates() int { return t.dupes }

// SortByDate orders rows by date ascending. Rows on the same day keep their
// relative order.
func (t *Table) SortByDate() {
	slices.SortStableFunc(t.records, func(a, b model.Record) int {
		return a.Date.Compare(b.Date)
	})
}

// Day groups the rows dated on one calendar day.
type Day struct {
	Date    time.Time
	Records []model.Record
}

// MaxFilledDays bounds the range Days fills with empty days. A wider range
// almost always comes from a mistyped year, so only days with rows are kept.
const MaxFilledDays = 731

// Days groups rows per calendar day over the whole range from the earliest
// to the latest date. Days without rows are included with no records,
// unless the range spans more than MaxFilledDays.
func (t *Table) Days() []Day {
	first, last, ok := t.bounds()
	if !ok {
		return nil
	}

	byDay := make(map[time.Time][]model.Record)
	for _, r := range t.records {
		d := calendarDay(r.Date)
		byDay[d] = append(byDay[d], r)
	}

	var days []Day
	if t.Span() > MaxFilledDays {
		for d, recs := range byDay {
			days = append(days, Day{Date: d, Records: recs})
		}
		slices.SortFunc(days, func(a, b Day) int { return a.Date.Compare(b.Date) })
		return days
	}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, Day{Date: d, Records: byDay[d]})
	}
	return days
}

// Span returns the number of calendar days from the earliest to the latest
// row, inclusive. An empty table spans zero days.
func (t *Table) Span() int {
	first, last, ok := t.bounds()
	if !ok {
		return 0
	}
	return int((last.Unix()-first.Unix())/86400) + 1
}

func (t *Table) bounds() (first, last time.Time, ok bool) {
	if len(t.records) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last = calendarDay(t.records[0].Date), calendarDay(t.records[0].Date)
	for _, r := range t.records[1:] {
		d := calendarDay(r.Date)
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	return first, last, true
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
