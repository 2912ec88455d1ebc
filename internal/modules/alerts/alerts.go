// Package alerts turns a warehouse tape and its limits into a severity-ranked
// alert feed and an asset-level watchlist.
//
// Evaluation is stateless. The same Input always yields the same alerts, ids
// included, so callers can diff feeds between runs.
package alerts

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"time"

	"github.com/aristath/rampwatch/internal/domain"
)

// Rule identifiers accepted in AlertConfig.DisabledRules.
const (
	RuleOCBreach          = "oc_breach"
	RuleOCProximity       = "oc_proximity"
	RuleCCCBreach         = "ccc_breach"
	RuleCCCProximity      = "ccc_proximity"
	RuleIndustryBreach    = "industry_breach"
	RuleIndustryProximity = "industry_proximity"
	RuleSingleNameBreach  = "single_name_breach"
	RuleSingleNameProx    = "single_name_proximity"
	RuleSecondLienBreach  = "second_lien_breach"
	RuleUnsecuredBreach   = "unsecured_breach"
	RuleDataStale         = "data_stale"
	RuleWARFHigh          = "warf_high"
	RuleDiversityLow      = "diversity_low"
	RuleDefaultedAssets   = "defaulted_assets"
	RulePriceOutlier      = "price_outlier"
	RuleUtilizationHigh   = "facility_utilization_high"
)

// Rules lists every rule identifier in evaluation order.
var Rules = []string{
	RuleOCBreach, RuleOCProximity,
	RuleCCCBreach, RuleCCCProximity,
	RuleIndustryBreach, RuleIndustryProximity,
	RuleSingleNameBreach, RuleSingleNameProx,
	RuleSecondLienBreach, RuleUnsecuredBreach,
	RuleDataStale, RuleWARFHigh, RuleDiversityLow,
	RuleDefaultedAssets, RulePriceOutlier, RuleUtilizationHigh,
}

// Input is everything one warehouse evaluation reads.
type Input struct {
	Warehouse string
	Assets    []domain.Asset
	Config    domain.WarehouseConfig
	Facility  domain.Facility
	// DataDate is the as-of date of the tape. The zero value skips the freshness rule.
	DataDate time.Time
	// Now is the evaluation time stamped on every alert.
	Now time.Time
}

// AlertID derives the stable id of an alert from its warehouse and key.
// Per-category rules fold the category into key, e.g. "industry_breach_Software".
func AlertID(warehouse, key string) string {
	sum := md5.Sum([]byte(warehouse + ":" + key))
	return hex.EncodeToString(sum[:])[:12]
}

type rule func(in Input) []domain.Alert

var catalogue = []rule{
	checkOC,
	checkCCC,
	checkIndustry,
	checkSingleName,
	checkLienSublimits,
	checkFreshness,
	checkWARF,
	checkDiversity,
	checkDefaulted,
	checkPriceOutliers,
	checkUtilization,
}

// Evaluate runs every enabled rule and returns the alerts CRITICAL first.
// Within a severity, alerts keep rule order.
func Evaluate(in Input) []domain.Alert {
	out := make([]domain.Alert, 0)
	for _, r := range catalogue {
		out = append(out, r(in)...)
	}
	SortBySeverity(out)
	return out
}

// EvaluateGlobal evaluates every warehouse independently, in warehouse name
// order, and re-sorts the union by severity.
func EvaluateGlobal(inputs []Input) []domain.Alert {
	ordered := append([]Input(nil), inputs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Warehouse < ordered[j].Warehouse
	})

	out := make([]domain.Alert, 0)
	for _, in := range ordered {
		out = append(out, Evaluate(in)...)
	}
	SortBySeverity(out)
	return out
}

// SortBySeverity stable-sorts alerts CRITICAL < WARNING < INFO.
func SortBySeverity(alerts []domain.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity.Rank() < alerts[j].Severity.Rank()
	})
}

// Counts tallies alerts per severity.
func Counts(alerts []domain.Alert) map[domain.Severity]int {
	counts := map[domain.Severity]int{
		domain.SeverityCritical: 0,
		domain.SeverityWarning:  0,
		domain.SeverityInfo:     0,
	}
	for _, a := range alerts {
		counts[a.Severity]++
	}
	return counts
}
