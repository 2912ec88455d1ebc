// Package domain holds the value objects shared by the rampwatch analytics modules:
// loan-level assets, portfolio snapshots, warehouse limits, stress parameters and alerts.
//
// Nothing in this package performs I/O. Configs are immutable for the duration of a
// computation; the engine reads them and never mutates assets.
package domain

import (
	"time"
)

// Asset is one row of a warehouse tape: a single loan position.
//
// Optional numeric terms are pointers so that "absent" is distinguishable from zero.
// Empty strings mean the field was not supplied.
type Asset struct {
	AssetID              string     `json:"asset_id" msgpack:"asset_id" validate:"required"`
	IssuerName           string     `json:"issuer_name" msgpack:"issuer_name" validate:"required"`
	ParAmount            float64    `json:"par_amount" msgpack:"par_amount" validate:"gte=0"`
	MarketPrice          *float64   `json:"market_price,omitempty" msgpack:"market_price"`
	Spread               *float64   `json:"spread,omitempty" msgpack:"spread"`
	Coupon               *float64   `json:"coupon,omitempty" msgpack:"coupon"`
	Floor                *float64   `json:"floor,omitempty" msgpack:"floor"`
	Index                string     `json:"index,omitempty" msgpack:"index"`
	MaturityDate         *time.Time `json:"maturity_date,omitempty" msgpack:"maturity_date"`
	RatingMoodys         string     `json:"rating_moodys,omitempty" msgpack:"rating_moodys"`
	RatingSP             string     `json:"rating_sp,omitempty" msgpack:"rating_sp"`
	OriginalRatingMoodys string     `json:"original_rating_moodys,omitempty" msgpack:"original_rating_moodys"`
	LienType             string     `json:"lien_type,omitempty" msgpack:"lien_type"`
	IndustryGICS         string     `json:"industry_gics,omitempty" msgpack:"industry_gics"`
	Country              string     `json:"country,omitempty" msgpack:"country"`
	IsCovLite            bool       `json:"is_cov_lite" msgpack:"is_cov_lite"`
	IsPIK                bool       `json:"is_pik" msgpack:"is_pik"`
	IsDefaulted          bool       `json:"is_defaulted" msgpack:"is_defaulted"`
}

// Price returns the market price and whether one was supplied.
func (a Asset) Price() (float64, bool) {
	if a.MarketPrice == nil {
		return 0, false
	}
	return *a.MarketPrice, true
}

// MarketValue returns par × price / 100, or 0 for an unpriced asset.
func (a Asset) MarketValue() float64 {
	p, ok := a.Price()
	if !ok {
		return 0
	}
	return a.ParAmount * p / 100
}

// YearsToMaturity returns the year fraction between asOf and maturity, floored at 0.
// The second return is false when no maturity date is known.
func (a Asset) YearsToMaturity(asOf time.Time) (float64, bool) {
	if a.MaturityDate == nil {
		return 0, false
	}
	days := float64(int(a.MaturityDate.Sub(asOf).Hours() / 24))
	years := days / 365.0
	if years < 0 {
		years = 0
	}
	return years, true
}

// Snapshot is the full set of assets reported by one warehouse for one as-of date.
type Snapshot struct {
	TapeID    string    `json:"tape_id,omitempty"`
	Warehouse string    `json:"warehouse"`
	AsOf      time.Time `json:"as_of"`
	Assets    []Asset   `json:"assets"`
}

// TotalPar sums par across all assets, duplicates included.
func (s Snapshot) TotalPar() float64 {
	return TotalPar(s.Assets)
}

// TotalPar sums par across assets.
func TotalPar(assets []Asset) float64 {
	total := 0.0
	for _, a := range assets {
		total += a.ParAmount
	}
	return total
}

// Facility carries the drawn-debt and cash figures for a warehouse when they are known.
// A nil DebtOutstanding means debt is estimated from collateral and advance rate.
type Facility struct {
	DebtOutstanding *float64 `json:"debt_outstanding,omitempty"`
	CashBalance     float64  `json:"cash_balance"`
}

// Float returns a pointer to v; handy for building optional asset terms.
func Float(v float64) *float64 {
	return &v
}

// Date returns a pointer to the UTC midnight of the given day.
func Date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}
