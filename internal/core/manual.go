package core

import "fmt"

// ManualEntry is one operator-supplied month. Monthly is mandatory; Annual
// and Index are derived from the store when omitted.
type ManualEntry struct {
	Year    int
	Month   int
	Monthly float64
	Annual  NullFloat
	Index   NullFloat
}

func (e ManualEntry) Validate() error {
	if e.Year < MinYear || e.Year > MaxYear {
		return fmt.Errorf("%w: %d", ErrInvalidYear, e.Year)
	}
	if e.Month < 1 || e.Month > 12 {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, e.Month)
	}
	if e.Index.Valid && e.Index.Float64 <= 0 {
		return fmt.Errorf("%w: %g", ErrInvalidIndex, e.Index.Float64)
	}
	return nil
}

// Record converts the entry to a CpiRecord without resolving the derived
// fields; the service fills Index and Annual against the store.
func (e ManualEntry) Record() CpiRecord {
	return CpiRecord{
		Year:    e.Year,
		Month:   e.Month,
		Monthly: Float(e.Monthly),
		Annual:  e.Annual,
		Index:   e.Index,
		Source:  SourceManual,
	}
}
