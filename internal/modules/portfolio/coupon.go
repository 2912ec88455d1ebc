package portfolio

import (
	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/pkg/formulas"
)

// Coupons summarises coupon terms by par. Missing coupons and floors count as 0.
type Coupons struct {
	WAvgCoupon   float64    `json:"wavg_coupon"`
	WAvgFloor    float64    `json:"wavg_floor"`
	PctWithFloor float64    `json:"pct_with_floor"`
	Indexes      []Exposure `json:"index_breakdown"`
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// CouponAnalytics returns the par-weighted coupon and floor, the fraction of par
// carrying a positive floor, and the reference-rate breakdown.
func CouponAnalytics(assets []domain.Asset) Coupons {
	result := Coupons{Indexes: []Exposure{}}
	total := domain.TotalPar(assets)
	if total <= 0 {
		return result
	}

	coupon, floor, floored := 0.0, 0.0, 0.0
	for _, a := range assets {
		coupon += a.ParAmount * orZero(a.Coupon)
		f := orZero(a.Floor)
		floor += a.ParAmount * f
		if f > 0 {
			floored += a.ParAmount
		}
	}

	result.WAvgCoupon = formulas.SafeDiv(coupon, total)
	result.WAvgFloor = formulas.SafeDiv(floor, total)
	result.PctWithFloor = formulas.SafeDiv(floored, total)
	result.Indexes = Exposures(assets, ByIndex, Par)
	return result
}

// WeightedAvgSpread is the par-weighted spread over assets that report one.
func WeightedAvgSpread(assets []domain.Asset) float64 {
	var values, weights []float64
	for _, a := range assets {
		if a.Spread == nil {
			continue
		}
		values = append(values, *a.Spread)
		weights = append(weights, a.ParAmount)
	}
	return formulas.WeightedMean(values, weights)
}

// WeightedAvgPrice returns Σ(par × price) / Σpar. Unpriced par stays in the
// denominator. The second return is false when no asset carries a price.
func WeightedAvgPrice(assets []domain.Asset) (float64, bool) {
	total := domain.TotalPar(assets)
	sum := 0.0
	priced := false
	for _, a := range assets {
		if p, ok := a.Price(); ok {
			sum += a.ParAmount * p
			priced = true
		}
	}
	if !priced {
		return 0, false
	}
	return formulas.SafeDiv(sum, total), true
}
