package compliance

import "github.com/aristath/rampwatch/internal/domain"

// Status of a single limit check.
type Status string

const (
	StatusPass        Status = "PASS"
	StatusApproaching Status = "APPROACHING"
	StatusBreach      Status = "BREACH"
)

// Bound says which side of the limit is compliant.
type Bound string

const (
	UpperBound Bound = "max"
	LowerBound Bound = "min"
)

// Approach bands: an upper-bound metric above 85% of its limit, or a lower-bound
// metric below 110% of its limit, is APPROACHING.
const (
	UpperApproachBand = 0.85
	LowerApproachBand = 1.10
)

// Check is one row of the compliance table.
type Check struct {
	Name   string  `json:"name"`
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Limit  float64 `json:"limit"`
	Bound  Bound   `json:"bound"`
	Status Status  `json:"status"`
}

func classify(value, limit float64, bound Bound) Status {
	if bound == LowerBound {
		switch {
		case value < limit:
			return StatusBreach
		case value < limit*LowerApproachBand:
			return StatusApproaching
		default:
			return StatusPass
		}
	}
	switch {
	case value > limit:
		return StatusBreach
	case value > limit*UpperApproachBand:
		return StatusApproaching
	default:
		return StatusPass
	}
}

// Checks grades the snapshot against cfg. OC is skipped when debt is unknown,
// spread when no asset reports one, and utilization when the facility size is
// unknown.
func (s Snapshot) Checks(cfg domain.WarehouseConfig) []Check {
	rows := make([]Check, 0, 9)
	if s.OCKnown {
		rows = append(rows, Check{Name: "OC Ratio", Metric: "oc_ratio", Value: s.OCRatio, Limit: cfg.OCTriggerPct, Bound: LowerBound})
	}
	rows = append(rows, []Check{
		{Name: "CCC %", Metric: "ccc_pct", Value: s.CCCPct, Limit: cfg.MaxCCCPct, Bound: UpperBound},
		{Name: "Max Industry", Metric: "industry_concentration", Value: s.MaxIndustryPct, Limit: cfg.ConcentrationLimitIndustry, Bound: UpperBound},
		{Name: "Max Issuer", Metric: "single_name_pct", Value: s.MaxSingleNamePct, Limit: cfg.MaxSingleNamePct, Bound: UpperBound},
		{Name: "Second Lien %", Metric: "second_lien_pct", Value: s.SecondLienPct, Limit: cfg.MaxSecondLienPct, Bound: UpperBound},
		{Name: "Unsecured %", Metric: "unsecured_pct", Value: s.UnsecuredPct, Limit: cfg.MaxUnsecuredPct, Bound: UpperBound},
		{Name: "WARF", Metric: "warf", Value: s.WARF, Limit: cfg.Alerts.WARFWarning, Bound: UpperBound},
	}...)
	if s.WAvgSpread > 0 {
		rows = append(rows, Check{Name: "W.Avg Spread", Metric: "wavg_spread", Value: s.WAvgSpread, Limit: cfg.MinSpread, Bound: LowerBound})
	}
	if cfg.MaxFacilityAmount > 0 {
		rows = append(rows, Check{Name: "Utilization", Metric: "facility_utilization", Value: s.Utilization, Limit: cfg.Alerts.UtilizationWarning, Bound: UpperBound})
	}

	for i := range rows {
		rows[i].Status = classify(rows[i].Value, rows[i].Limit, rows[i].Bound)
	}
	return rows
}

// Breaches returns the checks whose status is BREACH.
func Breaches(checks []Check) []Check {
	out := make([]Check, 0)
	for _, c := range checks {
		if c.Status == StatusBreach {
			out = append(out, c)
		}
	}
	return out
}
