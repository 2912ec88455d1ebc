package portfolio

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/pkg/formulas"
)

// TrendPoint is one as-of date of a warehouse's history.
type TrendPoint struct {
	AsOf      time.Time `json:"as_of"`
	FundedPar float64   `json:"funded_par"`
	WAvgPrice float64   `json:"wavg_price"`
	EstOC     float64   `json:"est_oc"`
	WARF      float64   `json:"warf"`
}

// Trend evaluates every snapshot independently and returns the points in date order.
// EstOC uses debt estimated from the weighted price and advanceRate.
func Trend(snapshots []domain.Snapshot, advanceRate float64) []TrendPoint {
	points := make([]TrendPoint, 0, len(snapshots))
	for _, s := range snapshots {
		funded := s.TotalPar()
		price, _ := WeightedAvgPrice(s.Assets)
		debt := funded * (price / 100) * advanceRate
		points = append(points, TrendPoint{
			AsOf:      s.AsOf,
			FundedPar: funded,
			WAvgPrice: price,
			EstOC:     formulas.SafeDiv(funded, debt),
			WARF:      WARF(s.Assets, Par),
		})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].AsOf.Before(points[j].AsOf)
	})
	return points
}

// RampProgress compares funded par with the warehouse's ramp target.
type RampProgress struct {
	HasTarget    bool    `json:"has_target"`
	FundedPar    float64 `json:"funded_par"`
	TargetAmount float64 `json:"target_amount"`
	PctOfTarget  float64 `json:"pct_of_target"`
	ScheduledPar float64 `json:"scheduled_par"`
	AheadBy      float64 `json:"ahead_by"`
	DaysToClose  int     `json:"days_to_close"`
}

// Ramp measures the latest trend point against a straight-line ramp from the
// first trend date to the target close date. Without a target amount and close
// date only FundedPar is set.
func Ramp(points []TrendPoint, cfg domain.WarehouseConfig, now time.Time) (RampProgress, error) {
	var result RampProgress
	if len(points) == 0 {
		return result, nil
	}
	result.FundedPar = points[len(points)-1].FundedPar
	if cfg.TargetRampAmount <= 0 || cfg.TargetCloseDate == "" {
		return result, nil
	}

	closeDate, err := time.Parse("2006-01-02", cfg.TargetCloseDate)
	if err != nil {
		return result, fmt.Errorf("parse target close date %q: %w", cfg.TargetCloseDate, err)
	}

	result.HasTarget = true
	result.TargetAmount = cfg.TargetRampAmount
	result.PctOfTarget = formulas.SafeDiv(result.FundedPar, cfg.TargetRampAmount)
	result.DaysToClose = int(math.Floor(closeDate.Sub(now).Hours() / 24))

	first := points[0].AsOf
	latest := points[len(points)-1].AsOf
	totalDays := closeDate.Sub(first).Hours() / 24
	if totalDays > 0 {
		elapsed := latest.Sub(first).Hours() / 24
		result.ScheduledPar = cfg.TargetRampAmount * math.Min(1, elapsed/totalDays)
	} else {
		result.ScheduledPar = cfg.TargetRampAmount
	}
	result.AheadBy = result.FundedPar - result.ScheduledPar
	return result, nil
}
