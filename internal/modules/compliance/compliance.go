// Package compliance reads a warehouse tape against the facility limits and
// reports every compliance ratio in one Snapshot.
package compliance

import (
	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/internal/modules/portfolio"
	"github.com/aristath/rampwatch/pkg/formulas"
)

// Snapshot bundles the compliance ratios of one tape. Percentages are fractions.
type Snapshot struct {
	FundedPar        float64 `json:"funded_par"`
	DebtOutstanding  float64 `json:"debt_outstanding"`
	DebtEstimated    bool    `json:"debt_estimated"`
	OCKnown          bool    `json:"oc_known"`
	OCRatio          float64 `json:"oc_ratio"`
	CCCPct           float64 `json:"ccc_pct"`
	MaxIndustryPct   float64 `json:"max_industry_pct"`
	MaxIndustryName  string  `json:"max_industry_name"`
	MaxSingleNamePct float64 `json:"max_single_name_pct"`
	MaxSingleName    string  `json:"max_single_name"`
	SecondLienPct    float64 `json:"second_lien_pct"`
	UnsecuredPct     float64 `json:"unsecured_pct"`
	WARF             float64 `json:"warf"`
	DiversityScore   float64 `json:"diversity_score"`
	IssuerHHI        float64 `json:"issuer_hhi"`
	IndustryHHI      float64 `json:"industry_hhi"`
	WAvgSpread       float64 `json:"wavg_spread"`
	Utilization      float64 `json:"utilization"`
}

// EstimateDebt returns the facility debt used for OC. A positive supplied
// DebtOutstanding wins; a missing or non-positive one is treated as not supplied
// and debt is funded par × weighted price / 100 × advance rate.
// The second return is false when debt is neither supplied nor estimable
// because no asset carries a price.
func EstimateDebt(assets []domain.Asset, cfg domain.WarehouseConfig, facility domain.Facility) (debt float64, estimated bool, ok bool) {
	if facility.DebtOutstanding != nil && *facility.DebtOutstanding > 0 {
		return *facility.DebtOutstanding, false, true
	}
	price, priced := portfolio.WeightedAvgPrice(assets)
	if !priced {
		return 0, true, false
	}
	return domain.TotalPar(assets) * (price / 100) * cfg.AdvanceRate, true, true
}

// Evaluate computes every compliance ratio of assets against cfg.
//
// OC is (funded par + cash) / debt. When debt is unknown OC stays 0 and OCKnown
// is false.
// An empty tape, or one with no par, returns a zero Snapshot.
func Evaluate(assets []domain.Asset, cfg domain.WarehouseConfig, facility domain.Facility) Snapshot {
	var s Snapshot
	funded := domain.TotalPar(assets)
	if funded <= 0 {
		return s
	}
	s.FundedPar = funded

	if debt, estimated, ok := EstimateDebt(assets, cfg, facility); ok && debt > 0 {
		s.OCKnown = true
		s.DebtOutstanding = debt
		s.DebtEstimated = estimated
		s.OCRatio = formulas.SafeDiv(funded+facility.CashBalance, debt)
		s.Utilization = formulas.SafeDiv(debt, cfg.MaxFacilityAmount)
	}

	s.CCCPct = portfolio.CCCPct(assets)

	if industries := portfolio.IndustryExposure(assets); len(industries) > 0 {
		s.MaxIndustryPct = industries[0].Pct
		s.MaxIndustryName = industries[0].Name
	}

	sn := portfolio.SingleNameConcentration(assets, portfolio.DefaultTopN)
	s.MaxSingleNamePct = sn.MaxPct
	s.MaxSingleName = sn.MaxName

	liens := portfolio.LienBreakdown(assets)
	s.SecondLienPct = liens.SecondLienPct
	s.UnsecuredPct = liens.UnsecuredPct

	s.WARF = portfolio.WARF(assets, portfolio.Par)
	s.DiversityScore = portfolio.DiversityScore(assets)
	s.IssuerHHI = portfolio.HHI(assets, portfolio.ByIssuer, portfolio.Par)
	s.IndustryHHI = portfolio.HHI(assets, portfolio.ByIndustry, portfolio.Par)
	s.WAvgSpread = portfolio.WeightedAvgSpread(assets)
	return s
}
