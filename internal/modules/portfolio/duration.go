package portfolio

import (
	"time"

	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/pkg/formulas"
)

// DurationFactor converts years to maturity into an approximate modified
// duration for floating-rate loans.
const DurationFactor = 0.9

// DurationMetrics is the rate sensitivity of a tape.
type DurationMetrics struct {
	WeightedAvgDuration float64 `json:"weighted_avg_duration"`
	DV01                float64 `json:"portfolio_dv01"`
	DV01PerMillion      float64 `json:"dv01_per_million"`
}

// EstimatedDuration returns years to maturity × DurationFactor, and false when
// the asset has no maturity date.
func EstimatedDuration(a domain.Asset, asOf time.Time) (float64, bool) {
	years, ok := a.YearsToMaturity(asOf)
	if !ok {
		return 0, false
	}
	return years * DurationFactor, true
}

// Duration computes the par-weighted duration, summed DV01 and DV01 per million
// of market value. Assets without a maturity add par to the denominator but no
// duration; unpriced assets add no market value.
//
// Outputs are rounded: duration to 2 places, DV01 figures to whole dollars.
func Duration(assets []domain.Asset, asOf time.Time) DurationMetrics {
	var result DurationMetrics
	total := domain.TotalPar(assets)
	if total <= 0 {
		return result
	}

	weighted, dv01, mv := 0.0, 0.0, 0.0
	for _, a := range assets {
		assetMV := a.MarketValue()
		mv += assetMV
		dur, ok := EstimatedDuration(a, asOf)
		if !ok {
			continue
		}
		weighted += a.ParAmount * dur
		dv01 += assetMV * dur * 0.0001
	}

	result.WeightedAvgDuration = formulas.Round(weighted/total, 2)
	result.DV01 = formulas.Round(dv01, 0)
	if mv > 0 {
		result.DV01PerMillion = formulas.Round(dv01/(mv/1e6), 0)
	}
	return result
}
