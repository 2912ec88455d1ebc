package alerts

import (
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/internal/modules/compliance"
	"github.com/aristath/rampwatch/internal/modules/portfolio"
)

// PriceOutlierLevel is the price below which an asset counts as a price outlier.
const PriceOutlierLevel = 70.0

var printer = message.NewPrinter(language.English)

func pct(v float64, places int) string {
	return fmt.Sprintf("%.*f%%", places, v*100)
}

func newAlert(in Input, key string, sev domain.Severity, category, title, detail, metric string, current, threshold float64) domain.Alert {
	return domain.Alert{
		AlertID:        AlertID(in.Warehouse, key),
		Warehouse:      in.Warehouse,
		Severity:       sev,
		Category:       category,
		Title:          title,
		Detail:         detail,
		MetricName:     metric,
		CurrentValue:   current,
		ThresholdValue: threshold,
		Timestamp:      in.Now,
	}
}

// checkOC needs debt: supplied, or estimated from priced collateral. Without
// either, or with non-positive debt, the rule is silent.
func checkOC(in Input) []domain.Alert {
	funded := domain.TotalPar(in.Assets)
	if funded <= 0 {
		return nil
	}
	debt, _, ok := compliance.EstimateDebt(in.Assets, in.Config, in.Facility)
	if !ok || debt <= 0 {
		return nil
	}

	ac := in.Config.Alerts
	oc := (funded + in.Facility.CashBalance) / debt
	trigger := in.Config.OCTriggerPct

	if oc < trigger {
		// A disabled breach rule silences the metric; it does not downgrade to proximity.
		if !ac.IsEnabled(RuleOCBreach) {
			return nil
		}
		return []domain.Alert{newAlert(in, RuleOCBreach, domain.SeverityCritical, domain.CategoryCompliance,
			"OC Ratio Breach",
			fmt.Sprintf("OC ratio %s is below trigger %s", pct(oc, 2), pct(trigger, 0)),
			"oc_ratio", oc, trigger)}
	}
	if ac.IsEnabled(RuleOCProximity) && oc < trigger*(1+ac.ProximityMargin) {
		return []domain.Alert{newAlert(in, RuleOCProximity, domain.SeverityWarning, domain.CategoryProximity,
			"OC Ratio Near Trigger",
			fmt.Sprintf("OC ratio %s is within %s of trigger %s", pct(oc, 2), pct(ac.ProximityMargin, 0), pct(trigger, 0)),
			"oc_ratio", oc, trigger)}
	}
	return nil
}

func checkCCC(in Input) []domain.Alert {
	if domain.TotalPar(in.Assets) <= 0 {
		return nil
	}
	ac := in.Config.Alerts
	ccc := portfolio.CCCPct(in.Assets)
	limit := in.Config.MaxCCCPct

	if ccc > limit {
		if !ac.IsEnabled(RuleCCCBreach) {
			return nil
		}
		return []domain.Alert{newAlert(in, RuleCCCBreach, domain.SeverityCritical, domain.CategoryCompliance,
			"CCC Bucket Breach",
			fmt.Sprintf("CCC exposure %s exceeds limit %s", pct(ccc, 1), pct(limit, 1)),
			"ccc_pct", ccc, limit)}
	}
	if ac.IsEnabled(RuleCCCProximity) && ccc > limit*(1-ac.ProximityMargin) {
		return []domain.Alert{newAlert(in, RuleCCCProximity, domain.SeverityWarning, domain.CategoryProximity,
			"CCC % Near Limit",
			fmt.Sprintf("CCC exposure %s approaching limit %s", pct(ccc, 1), pct(limit, 1)),
			"ccc_pct", ccc, limit)}
	}
	return nil
}

// checkIndustry emits one alert per offending industry, in industry name order.
func checkIndustry(in Input) []domain.Alert {
	industries := portfolio.IndustryExposure(in.Assets)
	sort.SliceStable(industries, func(i, j int) bool {
		return industries[i].Name < industries[j].Name
	})

	ac := in.Config.Alerts
	limit := in.Config.ConcentrationLimitIndustry
	var out []domain.Alert
	for _, ind := range industries {
		switch {
		case ind.Pct > limit:
			if !ac.IsEnabled(RuleIndustryBreach) {
				continue
			}
			out = append(out, newAlert(in, "industry_breach_"+ind.Name, domain.SeverityCritical, domain.CategoryConcentration,
				"Industry Limit Breach: "+ind.Name,
				fmt.Sprintf("%s at %s exceeds limit %s", ind.Name, pct(ind.Pct, 1), pct(limit, 0)),
				"industry_concentration", ind.Pct, limit))
		case ac.IsEnabled(RuleIndustryProximity) && ind.Pct > limit*(1-ac.ProximityMargin):
			out = append(out, newAlert(in, "industry_prox_"+ind.Name, domain.SeverityWarning, domain.CategoryProximity,
				"Industry Near Limit: "+ind.Name,
				fmt.Sprintf("%s at %s approaching limit %s", ind.Name, pct(ind.Pct, 1), pct(limit, 0)),
				"industry_concentration", ind.Pct, limit))
		}
	}
	return out
}

func checkSingleName(in Input) []domain.Alert {
	sn := portfolio.SingleNameConcentration(in.Assets, portfolio.DefaultTopN)
	ac := in.Config.Alerts
	limit := in.Config.MaxSingleNamePct

	if sn.MaxPct > limit {
		if !ac.IsEnabled(RuleSingleNameBreach) {
			return nil
		}
		return []domain.Alert{newAlert(in, RuleSingleNameBreach, domain.SeverityCritical, domain.CategoryConcentration,
			"Single-Name Breach: "+sn.MaxName,
			fmt.Sprintf("%s at %s exceeds limit %s", sn.MaxName, pct(sn.MaxPct, 1), pct(limit, 1)),
			"single_name_pct", sn.MaxPct, limit)}
	}
	if ac.IsEnabled(RuleSingleNameProx) && sn.MaxPct > limit*(1-ac.ProximityMargin) {
		return []domain.Alert{newAlert(in, RuleSingleNameProx, domain.SeverityWarning, domain.CategoryProximity,
			"Single-Name Near Limit: "+sn.MaxName,
			fmt.Sprintf("%s at %s approaching limit %s", sn.MaxName, pct(sn.MaxPct, 1), pct(limit, 1)),
			"single_name_pct", sn.MaxPct, limit)}
	}
	return nil
}

// checkLienSublimits has no proximity tier.
func checkLienSublimits(in Input) []domain.Alert {
	liens := portfolio.LienBreakdown(in.Assets)
	ac := in.Config.Alerts
	var out []domain.Alert

	if ac.IsEnabled(RuleSecondLienBreach) && liens.SecondLienPct > in.Config.MaxSecondLienPct {
		out = append(out, newAlert(in, RuleSecondLienBreach, domain.SeverityCritical, domain.CategoryCompliance,
			"Second Lien Sublimit Breach",
			fmt.Sprintf("2L exposure %s exceeds limit %s", pct(liens.SecondLienPct, 1), pct(in.Config.MaxSecondLienPct, 0)),
			"second_lien_pct", liens.SecondLienPct, in.Config.MaxSecondLienPct))
	}
	if ac.IsEnabled(RuleUnsecuredBreach) && liens.UnsecuredPct > in.Config.MaxUnsecuredPct {
		out = append(out, newAlert(in, RuleUnsecuredBreach, domain.SeverityCritical, domain.CategoryCompliance,
			"Unsecured Sublimit Breach",
			fmt.Sprintf("Unsecured exposure %s exceeds limit %s", pct(liens.UnsecuredPct, 1), pct(in.Config.MaxUnsecuredPct, 0)),
			"unsecured_pct", liens.UnsecuredPct, in.Config.MaxUnsecuredPct))
	}
	return out
}

// DaysOld is the number of whole days between dataDate and now, rounded down.
func DaysOld(dataDate, now time.Time) int {
	return int(math.Floor(now.Sub(dataDate).Hours() / 24))
}

func checkFreshness(in Input) []domain.Alert {
	ac := in.Config.Alerts
	if in.DataDate.IsZero() || len(in.Assets) == 0 || !ac.IsEnabled(RuleDataStale) {
		return nil
	}
	days := DaysOld(in.DataDate, in.Now)

	if days >= ac.StaleCriticalDays {
		return []domain.Alert{newAlert(in, "data_stale_critical", domain.SeverityCritical, domain.CategoryDataQuality,
			"Data Critically Stale",
			fmt.Sprintf("Last tape is %d days old (limit: %dd)", days, ac.StaleCriticalDays),
			"data_freshness_days", float64(days), float64(ac.StaleCriticalDays))}
	}
	if days >= ac.StaleWarningDays {
		return []domain.Alert{newAlert(in, "data_stale_warning", domain.SeverityWarning, domain.CategoryDataQuality,
			"Data Getting Stale",
			fmt.Sprintf("Last tape is %d days old (warning: %dd)", days, ac.StaleWarningDays),
			"data_freshness_days", float64(days), float64(ac.StaleWarningDays))}
	}
	return nil
}

func checkWARF(in Input) []domain.Alert {
	ac := in.Config.Alerts
	if !ac.IsEnabled(RuleWARFHigh) {
		return nil
	}
	warf := portfolio.WARF(in.Assets, portfolio.Par)

	if warf >= ac.WARFCritical {
		return []domain.Alert{newAlert(in, "warf_critical", domain.SeverityCritical, domain.CategoryRisk,
			"WARF Critical",
			fmt.Sprintf("WARF %.0f exceeds critical threshold %.0f", warf, ac.WARFCritical),
			"warf", warf, ac.WARFCritical)}
	}
	if warf >= ac.WARFWarning {
		return []domain.Alert{newAlert(in, "warf_warning", domain.SeverityWarning, domain.CategoryRisk,
			"WARF Elevated",
			fmt.Sprintf("WARF %.0f exceeds warning threshold %.0f", warf, ac.WARFWarning),
			"warf", warf, ac.WARFWarning)}
	}
	return nil
}

// checkDiversity ignores a zero score: it means no industry data, not no diversity.
func checkDiversity(in Input) []domain.Alert {
	ac := in.Config.Alerts
	score := portfolio.DiversityScore(in.Assets)
	if !ac.IsEnabled(RuleDiversityLow) || score <= 0 || score >= ac.DiversityWarning {
		return nil
	}
	return []domain.Alert{newAlert(in, RuleDiversityLow, domain.SeverityWarning, domain.CategoryRisk,
		"Low Diversity Score",
		fmt.Sprintf("Diversity score %.1f below threshold %.0f", score, ac.DiversityWarning),
		"diversity_score", score, ac.DiversityWarning)}
}

func checkDefaulted(in Input) []domain.Alert {
	if !in.Config.Alerts.IsEnabled(RuleDefaultedAssets) {
		return nil
	}
	count, par := 0, 0.0
	for _, a := range in.Assets {
		if a.IsDefaulted {
			count++
			par += a.ParAmount
		}
	}
	if count == 0 {
		return nil
	}
	return []domain.Alert{newAlert(in, RuleDefaultedAssets, domain.SeverityWarning, domain.CategoryRisk,
		fmt.Sprintf("%d Defaulted Asset(s)", count),
		printer.Sprintf("%d assets in default totaling $%.1fM par", count, par/1e6),
		"defaulted_count", float64(count), 0)}
}

// checkPriceOutliers is informational: a low print is as likely a data issue as distress.
func checkPriceOutliers(in Input) []domain.Alert {
	if !in.Config.Alerts.IsEnabled(RulePriceOutlier) {
		return nil
	}
	count := 0
	for _, a := range in.Assets {
		if p, ok := a.Price(); ok && p < PriceOutlierLevel {
			count++
		}
	}
	if count == 0 {
		return nil
	}
	return []domain.Alert{newAlert(in, RulePriceOutlier, domain.SeverityInfo, domain.CategoryDataQuality,
		fmt.Sprintf("%d Distressed Price Asset(s)", count),
		fmt.Sprintf("%d assets priced below %.0f (potential distress/data issue)", count, PriceOutlierLevel),
		"price_outlier_count", float64(count), PriceOutlierLevel)}
}

func checkUtilization(in Input) []domain.Alert {
	ac := in.Config.Alerts
	if in.Config.MaxFacilityAmount <= 0 || !ac.IsEnabled(RuleUtilizationHigh) {
		return nil
	}
	var debt float64
	if in.Facility.DebtOutstanding != nil {
		debt = *in.Facility.DebtOutstanding
	} else {
		if domain.TotalPar(in.Assets) <= 0 {
			return nil
		}
		d, _, ok := compliance.EstimateDebt(in.Assets, in.Config, in.Facility)
		if !ok {
			return nil
		}
		debt = d
	}

	utilization := debt / in.Config.MaxFacilityAmount
	if utilization <= ac.UtilizationWarning {
		return nil
	}
	return []domain.Alert{newAlert(in, "utilization_high", domain.SeverityWarning, domain.CategoryCompliance,
		"High Facility Utilization",
		fmt.Sprintf("Utilization %s exceeds warning %s", pct(utilization, 1), pct(ac.UtilizationWarning, 0)),
		"facility_utilization", utilization, ac.UtilizationWarning)}
}
