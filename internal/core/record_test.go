package core

import (
	"errors"
	"testing"
)

func TestCpiRecordValidate(t *testing.T) {
	valid := CpiRecord{Year: 2024, Month: 6, Index: Float(1234.5)}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	cases := []struct {
		name string
		rec  CpiRecord
		want error
	}{
		{"year too small", CpiRecord{Year: 1800, Month: 1}, ErrInvalidYear},
		{"year too large", CpiRecord{Year: 2200, Month: 1}, ErrInvalidYear},
		{"month zero", CpiRecord{Year: 2024, Month: 0}, ErrInvalidMonth},
		{"month thirteen", CpiRecord{Year: 2024, Month: 13}, ErrInvalidMonth},
		{"zero index", CpiRecord{Year: 2024, Month: 1, Index: Float(0)}, ErrInvalidIndex},
		{"negative index", CpiRecord{Year: 2024, Month: 1, Index: Float(-3)}, ErrInvalidIndex},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.rec.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestMonthKeyOrdering(t *testing.T) {
	// December to January of the next year must differ by exactly one.
	if MonthKey(2025, 1)-MonthKey(2024, 12) != 1 {
		t.Error("year boundary is not contiguous")
	}
	if MonthKey(2024, 3)-MonthKey(2023, 3) != 12 {
		t.Error("same month across years must differ by twelve")
	}
}

func TestPrevMonth(t *testing.T) {
	y, m := PrevMonth(2025, 1)
	if y != 2024 || m != 12 {
		t.Errorf("PrevMonth(2025, 1) = (%d, %d)", y, m)
	}
	y, m = PrevMonth(2025, 7)
	if y != 2025 || m != 6 {
		t.Errorf("PrevMonth(2025, 7) = (%d, %d)", y, m)
	}
}

func TestDedupeLastWins(t *testing.T) {
	records := []CpiRecord{
		{Year: 2020, Month: 1, Index: Float(100)},
		{Year: 2020, Month: 2, Index: Float(101)},
		{Year: 2020, Month: 2, Index: Float(105)},
		{Year: 2020, Month: 3, Index: Float(110)},
	}
	out := DedupeLastWins(records)
	if len(out) != 3 {
		t.Fatalf("got %d records, want 3", len(out))
	}
	if out[1].Index.Float64 != 105 {
		t.Errorf("duplicate key kept %g, want the later value 105", out[1].Index.Float64)
	}
}
