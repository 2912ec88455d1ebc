package stress

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/internal/modules/compliance"
	"github.com/aristath/rampwatch/internal/modules/portfolio"
	"github.com/aristath/rampwatch/pkg/formulas"
)

// StressedCCCThreshold is the stressed CCC share above which a run reports a
// CCC breach. It does not follow the warehouse's own max_ccc_pct.
const StressedCCCThreshold = 0.075

// ErrUnknownPreset is returned when a preset name has no parameter set.
var ErrUnknownPreset = errors.New("unknown stress preset")

// Results is one full stress run. It is built once and never mutated.
type Results struct {
	Warehouse         string           `json:"warehouse"`
	AsOf              time.Time        `json:"as_of"`
	TotalPar          float64          `json:"total_par"`
	BaseMV            float64          `json:"base_mv"`
	DebtOutstanding   float64          `json:"debt_outstanding"`
	CashBalance       float64          `json:"cash_balance"`
	BaseOC            float64          `json:"base_oc"`
	Scenarios         []ScenarioResult `json:"scenarios"`
	TotalStressedLoss float64          `json:"total_stressed_loss"`
	StressedOC        float64          `json:"stressed_oc"`
	OCTrigger         float64          `json:"oc_trigger"`
	OCBreach          bool             `json:"oc_breach"`
	StressedCCCPct    float64          `json:"stressed_ccc_pct"`
	CCCBreach         bool             `json:"ccc_breach"`
	StressedNAV       float64          `json:"stressed_nav"`
}

// Scenario returns the named scenario result.
func (r Results) Scenario(name string) (ScenarioResult, bool) {
	for _, s := range r.Scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return ScenarioResult{}, false
}

// debtFor follows compliance.EstimateDebt but values an unpriced tape at par so
// stressed OC always has a denominator.
func debtFor(assets []domain.Asset, cfg domain.WarehouseConfig, facility domain.Facility) float64 {
	if debt, _, ok := compliance.EstimateDebt(assets, cfg, facility); ok {
		return debt
	}
	return domain.TotalPar(assets) * cfg.AdvanceRate
}

// RunAll runs the five scenarios and aggregates them.
//
// Price shock and spread widening describe the same market move, so only the
// larger counts; default stress adds on top. Migration and concentration are
// reported but not summed. Migration's stressed CCC share drives CCCBreach.
func RunAll(assets []domain.Asset, cfg domain.WarehouseConfig, stressCfg domain.StressConfig, facility domain.Facility, asOf time.Time) Results {
	totalPar := domain.TotalPar(assets)
	baseMV := totalPar
	if _, ok := portfolio.WeightedAvgPrice(assets); ok {
		baseMV = 0
		for _, a := range assets {
			baseMV += a.MarketValue()
		}
	}
	debt := debtFor(assets, cfg, facility)
	cash := facility.CashBalance

	priceShock := PriceShock(assets, stressCfg)
	defaults := DefaultStress(assets, stressCfg)
	spread := SpreadWidening(assets, stressCfg, asOf)
	migration, stressedCCC := DowngradeMigration(assets, stressCfg)
	concentration := Concentration(assets, stressCfg)

	loss := math.Max(priceShock.LossDollars, spread.LossDollars) + defaults.LossDollars
	stressedOC := formulas.SafeDiv(totalPar-loss+cash, debt)

	return Results{
		AsOf:              asOf,
		TotalPar:          totalPar,
		BaseMV:            baseMV,
		DebtOutstanding:   debt,
		CashBalance:       cash,
		BaseOC:            formulas.SafeDiv(totalPar+cash, debt),
		Scenarios:         []ScenarioResult{priceShock, defaults, spread, migration, concentration},
		TotalStressedLoss: loss,
		StressedOC:        stressedOC,
		OCTrigger:         cfg.OCTriggerPct,
		OCBreach:          stressedOC < cfg.OCTriggerPct,
		StressedCCCPct:    stressedCCC,
		CCCBreach:         stressedCCC > StressedCCCThreshold,
		StressedNAV:       totalPar - loss + cash - debt,
	}
}

// RunSnapshot runs all scenarios for one stored snapshot.
func RunSnapshot(s domain.Snapshot, cfg domain.WarehouseConfig, stressCfg domain.StressConfig, facility domain.Facility) Results {
	r := RunAll(s.Assets, cfg, stressCfg, facility, s.AsOf)
	r.Warehouse = s.Warehouse
	return r
}

// HistoryPoint is one as-of date of a stress trend.
type HistoryPoint struct {
	AsOf           time.Time `json:"as_of"`
	BaseOC         float64   `json:"base_oc"`
	StressedOC     float64   `json:"stressed_oc"`
	StressedCCCPct float64   `json:"stressed_ccc_pct"`
	TotalLoss      float64   `json:"total_loss"`
	LossPct        float64   `json:"loss_pct"`
}

// RunHistorical stresses every snapshot from scratch with estimated debt and
// returns the trend in date order. Nothing carries over between dates.
func RunHistorical(snapshots []domain.Snapshot, cfg domain.WarehouseConfig, stressCfg domain.StressConfig) []HistoryPoint {
	points := make([]HistoryPoint, 0, len(snapshots))
	for _, s := range snapshots {
		r := RunSnapshot(s, cfg, stressCfg, domain.Facility{})
		points = append(points, HistoryPoint{
			AsOf:           s.AsOf,
			BaseOC:         r.BaseOC,
			StressedOC:     r.StressedOC,
			StressedCCCPct: r.StressedCCCPct,
			TotalLoss:      r.TotalStressedLoss,
			LossPct:        formulas.SafeDiv(r.TotalStressedLoss, r.TotalPar),
		})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].AsOf.Before(points[j].AsOf)
	})
	return points
}

// PresetResult pairs a preset name with its run.
type PresetResult struct {
	Preset  string  `json:"preset"`
	Results Results `json:"results"`
}

// ComparePresets runs the named presets against one snapshot, in the order given.
// No names means every preset.
func ComparePresets(s domain.Snapshot, cfg domain.WarehouseConfig, facility domain.Facility, names ...string) ([]PresetResult, error) {
	if len(names) == 0 {
		names = domain.PresetNames()
	}
	out := make([]PresetResult, 0, len(names))
	for _, name := range names {
		stressCfg, ok := domain.Preset(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
		}
		out = append(out, PresetResult{Preset: name, Results: RunSnapshot(s, cfg, stressCfg, facility)})
	}
	return out, nil
}
