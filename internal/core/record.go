package core

import (
	"errors"
	"fmt"
	"sort"
)

const (
	SourceCSV    = "csv"
	SourceFRED   = "fred"
	SourceManual = "manual"

	// MinYear and MaxYear bound what we accept as a plausible record year.
	MinYear = 1900
	MaxYear = 2100
)

type (
	// NullFloat is an optional float64. A derived rate whose reference
	// month is missing stays Valid=false; it is never zero-filled.
	NullFloat struct {
		Float64 float64
		Valid   bool
	}

	// CpiRecord is one month of Argentine CPI data, keyed by (Year, Month).
	CpiRecord struct {
		Year  int
		Month int

		Index   NullFloat // CPI index level, strictly positive when set
		Monthly NullFloat // month-over-month change, percent
		Annual  NullFloat // change vs the same month one year earlier, percent

		Source string // csv, fred or manual
	}
)

var (
	ErrInvalidYear  = errors.New("year out of range")
	ErrInvalidMonth = errors.New("invalid month")
	ErrInvalidIndex = errors.New("cpi index must be positive")
)

// Float wraps a known value.
func Float(v float64) NullFloat {
	return NullFloat{Float64: v, Valid: true}
}

func (r CpiRecord) Validate() error {
	if r.Year < MinYear || r.Year > MaxYear {
		return fmt.Errorf("%w: %d", ErrInvalidYear, r.Year)
	}
	if r.Month < 1 || r.Month > 12 {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, r.Month)
	}
	if r.Index.Valid && r.Index.Float64 <= 0 {
		return fmt.Errorf("%w: %g", ErrInvalidIndex, r.Index.Float64)
	}
	return nil
}

// Key maps (Year, Month) onto a single ascending integer so that
// consecutive calendar months differ by exactly one.
func (r CpiRecord) Key() int {
	return MonthKey(r.Year, r.Month)
}

// DateString renders the record's month as its first day, YYYY-MM-DD.
func (r CpiRecord) DateString() string {
	return fmt.Sprintf("%04d-%02d-01", r.Year, r.Month)
}

// MonthKey maps a calendar month onto a totally ordered integer.
func MonthKey(year, month int) int {
	return year*12 + month - 1
}

// PrevMonth returns the calendar month immediately before (year, month).
func PrevMonth(year, month int) (int, int) {
	if month == 1 {
		return year - 1, 12
	}
	return year, month - 1
}

// SortByMonth orders records ascending by (year, month). The sort is
// stable so DedupeLastWins sees duplicates in their original order.
func SortByMonth(records []CpiRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Key() < records[j].Key()
	})
}

// DedupeLastWins collapses duplicate (year, month) keys, keeping the entry
// that appears later in the slice. Input must already be sorted; output
// stays sorted.
func DedupeLastWins(records []CpiRecord) []CpiRecord {
	if len(records) < 2 {
		return records
	}
	out := records[:0]
	for i := 0; i < len(records); i++ {
		if len(out) > 0 && out[len(out)-1].Key() == records[i].Key() {
			out[len(out)-1] = records[i]
			continue
		}
		out = append(out, records[i])
	}
	return out
}

// Query filters a record listing. Limit values of DefaultLimit or more mean
// "no limit": graph consumers fetch the entire series that way.
type Query struct {
	StartYear int
	EndYear   int // zero means open-ended
	Limit     int
}

// DefaultLimit is the listing limit at and above which no limit is applied.
const DefaultLimit = 1000
