// Package portfolio computes the portfolio-level risk metrics of a warehouse
// tape: WARF, diversity, HHI, concentration tables, lien mix, duration and
// coupon analytics.
//
// Every function is pure and total. An empty tape, or one whose total weight is
// not positive, yields zero values and empty tables.
package portfolio

import (
	"sort"

	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/pkg/formulas"
)

// Weight selects the aggregation weight of an asset. A nil Weight means par.
type Weight func(domain.Asset) float64

// GroupBy selects the grouping key of an asset. Assets with an empty key carry
// weight in the total but belong to no group.
type GroupBy func(domain.Asset) string

// Par weights by par amount.
func Par(a domain.Asset) float64 { return a.ParAmount }

// MarketValue weights by par × price / 100.
func MarketValue(a domain.Asset) float64 { return a.MarketValue() }

func ByIssuer(a domain.Asset) string   { return a.IssuerName }
func ByIndustry(a domain.Asset) string { return a.IndustryGICS }
func ByCountry(a domain.Asset) string  { return a.Country }
func ByIndex(a domain.Asset) string    { return a.Index }

func weightOrPar(w Weight) Weight {
	if w == nil {
		return Par
	}
	return w
}

func totalWeight(assets []domain.Asset, w Weight) float64 {
	w = weightOrPar(w)
	total := 0.0
	for _, a := range assets {
		total += w(a)
	}
	return total
}

// Exposure is one row of a breakdown table.
type Exposure struct {
	Name string  `json:"name"`
	Par  float64 `json:"par"`
	Pct  float64 `json:"pct"`
}

// Shares returns each asset's fraction of the total weight, in input order.
// The result sums to 1 unless the total weight is not positive, in which case
// every share is 0.
func Shares(assets []domain.Asset, w Weight) []float64 {
	w = weightOrPar(w)
	total := totalWeight(assets, w)
	shares := make([]float64, len(assets))
	for i, a := range assets {
		shares[i] = formulas.SafeDiv(w(a), total)
	}
	return shares
}

// Exposures groups assets by key and returns one row per group, largest first.
// Ties are broken by name so the table is stable for a given tape.
func Exposures(assets []domain.Asset, key GroupBy, w Weight) []Exposure {
	w = weightOrPar(w)
	total := totalWeight(assets, w)
	if total <= 0 {
		return []Exposure{}
	}

	byName := make(map[string]float64)
	for _, a := range assets {
		k := key(a)
		if k == "" {
			continue
		}
		byName[k] += w(a)
	}

	rows := make([]Exposure, 0, len(byName))
	for name, par := range byName {
		rows = append(rows, Exposure{Name: name, Par: par, Pct: par / total})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Par != rows[j].Par {
			return rows[i].Par > rows[j].Par
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

// HHI is the Herfindahl-Hirschman index Σshare² over the groups selected by key.
// One group holding everything gives 1; N equal groups give 1/N.
func HHI(assets []domain.Asset, key GroupBy, w Weight) float64 {
	rows := Exposures(assets, key, w)
	shares := make([]float64, len(rows))
	for i, r := range rows {
		shares[i] = r.Pct
	}
	return formulas.SumOfSquares(shares)
}

// CountryConcentration is the per-country breakdown by par.
func CountryConcentration(assets []domain.Asset) []Exposure {
	return Exposures(assets, ByCountry, Par)
}

// IndustryExposure is the per-industry breakdown by par.
func IndustryExposure(assets []domain.Asset) []Exposure {
	return Exposures(assets, ByIndustry, Par)
}
