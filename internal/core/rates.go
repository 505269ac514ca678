package core

import "math"

// FillIndexes derives missing CPI index levels from monthly rates, walking
// a sorted slice in chronological order:
//
//	index = base × (1 + monthly/100)^gap
//
// where base is the nearest prior known index and gap the number of months
// between them. A record with no prior known index anywhere in the slice is
// left unset; callers with access to a wider store (manual entry) resolve
// that case via ProjectIndex against the latest stored index.
func FillIndexes(records []CpiRecord) {
	var (
		baseIdx NullFloat
		baseKey int
	)
	for i := range records {
		r := &records[i]
		if r.Index.Valid {
			baseIdx = r.Index
			baseKey = r.Key()
			continue
		}
		if !r.Monthly.Valid || !baseIdx.Valid {
			continue
		}
		gap := r.Key() - baseKey
		r.Index = Float(ProjectIndex(baseIdx.Float64, r.Monthly.Float64, gap))
		baseIdx = r.Index
		baseKey = r.Key()
	}
}

// ProjectIndex compounds a monthly percentage rate over a month gap.
// For gap 1 this is the plain previous-month formula; for larger gaps it is
// an approximation that assumes the rate held for every missing month.
func ProjectIndex(base, monthlyRate float64, months int) float64 {
	return base * math.Pow(1+monthlyRate/100, float64(months))
}

// FillRates derives missing monthly and annual rates from CPI index levels.
// The monthly reference is the immediately preceding calendar month and the
// annual reference the same month twelve months back; when the reference
// record is absent the rate stays unset.
func FillRates(records []CpiRecord) {
	byKey := make(map[int]float64, len(records))
	for _, r := range records {
		if r.Index.Valid {
			byKey[r.Key()] = r.Index.Float64
		}
	}
	for i := range records {
		r := &records[i]
		if !r.Index.Valid {
			continue
		}
		if !r.Monthly.Valid {
			if prev, ok := byKey[r.Key()-1]; ok {
				r.Monthly = Float((r.Index.Float64/prev - 1) * 100)
			}
		}
		if !r.Annual.Valid {
			if prev, ok := byKey[r.Key()-12]; ok {
				r.Annual = Float((r.Index.Float64/prev - 1) * 100)
			}
		}
	}
}

// Splice joins a fetched series onto the tail of a historical one. The
// fetched indexes are rebased by last_historical/first_fetched so the two
// series connect continuously, then both are merged last-wins on overlap
// (the fetched value replaces the historical one for the same month).
func Splice(historical, fetched []CpiRecord) []CpiRecord {
	if len(historical) == 0 {
		return fetched
	}
	if len(fetched) == 0 {
		return historical
	}

	var lastHist, firstFetched NullFloat
	for i := len(historical) - 1; i >= 0; i-- {
		if historical[i].Index.Valid {
			lastHist = historical[i].Index
			break
		}
	}
	for _, r := range fetched {
		if r.Index.Valid {
			firstFetched = r.Index
			break
		}
	}
	if lastHist.Valid && firstFetched.Valid && firstFetched.Float64 != 0 {
		factor := lastHist.Float64 / firstFetched.Float64
		for i := range fetched {
			if fetched[i].Index.Valid {
				fetched[i].Index.Float64 *= factor
			}
		}
	}

	combined := make([]CpiRecord, 0, len(historical)+len(fetched))
	combined = append(combined, historical...)
	combined = append(combined, fetched...)
	SortByMonth(combined)
	return DedupeLastWins(combined)
}

// EstimateAnnualFromMonthly is the rough fallback used by manual entry when
// the same month of the prior year is not in the store: it simply scales the
// monthly rate by twelve, ignoring compounding.
func EstimateAnnualFromMonthly(monthlyRate float64) float64 {
	return monthlyRate * 12
}
