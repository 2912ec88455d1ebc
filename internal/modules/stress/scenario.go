// Package stress runs the five deterministic stress scenarios over a warehouse
// tape and combines them into a stressed OC determination.
package stress

import (
	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/internal/modules/ratings"
)

// Scenario names
const (
	ScenarioPriceShock    = "Price Shock"
	ScenarioDefault       = "Default Stress"
	ScenarioSpread        = "Spread Widening"
	ScenarioMigration     = "Downgrade Migration"
	ScenarioConcentration = "Concentration"
)

// FallbackYearsToMaturity is used by the spread scenario for assets without a maturity date.
const FallbackYearsToMaturity = 3.0

// AssetLoss is the per-asset breakdown of a scenario. Only the fields the
// scenario uses are populated.
type AssetLoss struct {
	AssetID        string       `json:"asset_id"`
	IssuerName     string       `json:"issuer_name"`
	Tier           ratings.Tier `json:"tier,omitempty"`
	StressedTier   ratings.Tier `json:"stressed_tier,omitempty"`
	ParAmount      float64      `json:"par_amount"`
	MarketPrice    *float64     `json:"market_price,omitempty"`
	StressedPrice  *float64     `json:"stressed_price,omitempty"`
	Haircut        float64      `json:"haircut,omitempty"`
	CDR            float64      `json:"cdr,omitempty"`
	Recovery       float64      `json:"recovery,omitempty"`
	DefaultedPar   float64      `json:"expected_default_par,omitempty"`
	SpreadShockBps float64      `json:"spread_shock_bps,omitempty"`
	Duration       float64      `json:"est_duration,omitempty"`
	Migrated       bool         `json:"migrated,omitempty"`
	Loss           float64      `json:"loss"`
}

// ScenarioResult is the outcome of one scenario.
type ScenarioResult struct {
	Name        string      `json:"name"`
	LossDollars float64     `json:"loss_dollars"`
	LossPct     float64     `json:"loss_pct"`
	Detail      string      `json:"detail"`
	Assets      []AssetLoss `json:"asset_level,omitempty"`
}

// NR and unrecognised tiers are stressed as B.
func priceHaircut(cfg domain.StressConfig, t ratings.Tier) float64 {
	switch t {
	case ratings.TierIG:
		return cfg.PriceShockIG
	case ratings.TierBB:
		return cfg.PriceShockBB
	case ratings.TierCCC:
		return cfg.PriceShockCCC
	default:
		return cfg.PriceShockB
	}
}

func defaultRate(cfg domain.StressConfig, t ratings.Tier) float64 {
	switch t {
	case ratings.TierIG:
		return cfg.CDRIG
	case ratings.TierBB:
		return cfg.CDRBB
	case ratings.TierCCC:
		return cfg.CDRCCC
	default:
		return cfg.CDRB
	}
}

func spreadShock(cfg domain.StressConfig, t ratings.Tier) float64 {
	switch t {
	case ratings.TierIG:
		return cfg.SpreadShockIG
	case ratings.TierBB:
		return cfg.SpreadShockBB
	case ratings.TierCCC:
		return cfg.SpreadShockCCC
	default:
		return cfg.SpreadShockB
	}
}

func recoveries(cfg domain.StressConfig) ratings.RecoveryRates {
	return ratings.RecoveryRates{
		FirstLien:  cfg.Recovery1L,
		SecondLien: cfg.Recovery2L,
		Unsecured:  cfg.RecoveryUnsecured,
	}
}
