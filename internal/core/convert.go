package core

import (
	"errors"
	"math"
)

var ErrNoCPIData = errors.New("no CPI data for requested date")

type (
	// Conversion is the result of moving an amount between two months
	// using the ratio of their CPI index levels.
	Conversion struct {
		OriginalAmount   float64
		ConvertedAmount  float64
		Multiplier       float64
		PercentageChange float64
		FromCPI          float64
		ToCPI            float64
	}

	// Summary captures headline statistics over the stored series.
	Summary struct {
		CurrentMonthly  float64
		CurrentAnnual   float64
		AvgLast12Months float64
		TotalInflation  float64 // since the earliest stored record, percent
		LastUpdated     string  // YYYY-MM-DD of the latest record
	}

	// RangeResult is the total inflation between two dates.
	RangeResult struct {
		TotalInflation float64
		Multiplier     float64
		Years          float64
	}

	// AnnualRate is one year's closing year-over-year rate.
	AnnualRate struct {
		Year int
		Rate float64
	}
)

// ConvertPrice revalues amount between two CPI levels:
// new price = old price × (new CPI / old CPI).
func ConvertPrice(amount, fromCPI, toCPI float64) (Conversion, error) {
	if fromCPI <= 0 || toCPI <= 0 {
		return Conversion{}, ErrNoCPIData
	}
	multiplier := toCPI / fromCPI
	return Conversion{
		OriginalAmount:   amount,
		ConvertedAmount:  Round2(amount * multiplier),
		Multiplier:       Round4(multiplier),
		PercentageChange: Round2((multiplier - 1) * 100),
		FromCPI:          fromCPI,
		ToCPI:            toCPI,
	}, nil
}

func Round2(v float64) float64 { return math.Round(v*100) / 100 }

func Round4(v float64) float64 { return math.Round(v*10000) / 10000 }
