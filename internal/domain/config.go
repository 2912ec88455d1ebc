package domain

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Warehouse facility types
const (
	WarehouseTypeBSL          = "BSL"
	WarehouseTypeMiddleMarket = "Middle Market"
)

// WarehouseConfig holds the limits negotiated for one warehouse facility.
// Percent-style limits are fractions (0.15 means 15%).
type WarehouseConfig struct {
	MaxFacilityAmount          float64      `json:"max_facility_amount" yaml:"max_facility_amount"`
	AdvanceRate                float64      `json:"advance_rate" yaml:"advance_rate"`
	OCTriggerPct               float64      `json:"oc_trigger_pct" yaml:"oc_trigger_pct"`
	MinSpread                  float64      `json:"min_spread" yaml:"min_spread"`
	ConcentrationLimitIndustry float64      `json:"concentration_limit_industry" yaml:"concentration_limit_industry"`
	MaxSingleNamePct           float64      `json:"max_single_name_pct" yaml:"max_single_name_pct"`
	MaxSecondLienPct           float64      `json:"max_second_lien_pct" yaml:"max_second_lien_pct"`
	MaxUnsecuredPct            float64      `json:"max_unsecured_pct" yaml:"max_unsecured_pct"`
	MaxCCCPct                  float64      `json:"max_ccc_pct" yaml:"max_ccc_pct"`
	WarehouseType              string       `json:"warehouse_type" yaml:"warehouse_type"`
	TargetRampAmount           float64      `json:"target_ramp_amount,omitempty" yaml:"target_ramp_amount"`
	TargetCloseDate            string       `json:"target_close_date,omitempty" yaml:"target_close_date"`
	Stress                     StressConfig `json:"stress_config" yaml:"stress_config"`
	Alerts                     AlertConfig  `json:"alert_config" yaml:"alert_config"`
}

// DefaultWarehouseConfig returns the limits applied to a warehouse with no stored config.
func DefaultWarehouseConfig() WarehouseConfig {
	return WarehouseConfig{
		MaxFacilityAmount:          100_000_000,
		AdvanceRate:                0.80,
		OCTriggerPct:               1.25,
		MinSpread:                  2.50,
		ConcentrationLimitIndustry: 0.15,
		MaxSingleNamePct:           0.02,
		MaxSecondLienPct:           0.10,
		MaxUnsecuredPct:            0.05,
		MaxCCCPct:                  0.075,
		WarehouseType:              WarehouseTypeBSL,
		Stress:                     DefaultStressConfig(),
		Alerts:                     DefaultAlertConfig(),
	}
}

// Validate reports every out-of-range limit at once.
func (c WarehouseConfig) Validate() error {
	var err error

	if c.MaxFacilityAmount < 0 {
		err = multierr.Append(err, errors.New("max_facility_amount must not be negative"))
	}
	if c.AdvanceRate <= 0 || c.AdvanceRate > 1 {
		err = multierr.Append(err, errors.New("advance_rate must be in (0,1]"))
	}
	if c.OCTriggerPct <= 0 {
		err = multierr.Append(err, errors.New("oc_trigger_pct must be positive"))
	}
	for _, limit := range []struct {
		name  string
		value float64
	}{
		{"concentration_limit_industry", c.ConcentrationLimitIndustry},
		{"max_single_name_pct", c.MaxSingleNamePct},
		{"max_second_lien_pct", c.MaxSecondLienPct},
		{"max_unsecured_pct", c.MaxUnsecuredPct},
		{"max_ccc_pct", c.MaxCCCPct},
	} {
		if limit.value < 0 || limit.value > 1 {
			err = multierr.Append(err, fmt.Errorf("%s must be in [0,1]", limit.name))
		}
	}
	if c.WarehouseType != WarehouseTypeBSL && c.WarehouseType != WarehouseTypeMiddleMarket {
		err = multierr.Append(err, fmt.Errorf("warehouse_type %q is not one of %q, %q",
			c.WarehouseType, WarehouseTypeBSL, WarehouseTypeMiddleMarket))
	}

	err = multierr.Append(err, c.Stress.Validate())
	err = multierr.Append(err, c.Alerts.Validate())
	return err
}

// AlertConfig holds the thresholds that decide when an alert rule fires.
type AlertConfig struct {
	ProximityMargin    float64  `json:"proximity_margin" yaml:"proximity_margin"`
	StaleWarningDays   int      `json:"stale_warning_days" yaml:"stale_warning_days"`
	StaleCriticalDays  int      `json:"stale_critical_days" yaml:"stale_critical_days"`
	WARFWarning        float64  `json:"warf_warning" yaml:"warf_warning"`
	WARFCritical       float64  `json:"warf_critical" yaml:"warf_critical"`
	DiversityWarning   float64  `json:"diversity_warning" yaml:"diversity_warning"`
	UtilizationWarning float64  `json:"utilization_warning" yaml:"utilization_warning"`
	DisabledRules      []string `json:"disabled_rules,omitempty" yaml:"disabled_rules"`
}

// DefaultAlertConfig returns the stock alert thresholds.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		ProximityMargin:    0.10,
		StaleWarningDays:   7,
		StaleCriticalDays:  14,
		WARFWarning:        3000,
		WARFCritical:       3500,
		DiversityWarning:   40,
		UtilizationWarning: 0.90,
	}
}

// IsEnabled reports whether ruleID is absent from the disabled set.
func (c AlertConfig) IsEnabled(ruleID string) bool {
	for _, r := range c.DisabledRules {
		if r == ruleID {
			return false
		}
	}
	return true
}

// Validate reports every inconsistent threshold at once.
func (c AlertConfig) Validate() error {
	var err error

	if c.ProximityMargin < 0 || c.ProximityMargin >= 1 {
		err = multierr.Append(err, errors.New("proximity_margin must be in [0,1)"))
	}
	if c.StaleWarningDays < 0 || c.StaleCriticalDays < 0 {
		err = multierr.Append(err, errors.New("stale day thresholds must not be negative"))
	}
	if c.StaleCriticalDays < c.StaleWarningDays {
		err = multierr.Append(err, errors.New("stale_critical_days must not be below stale_warning_days"))
	}
	if c.WARFCritical < c.WARFWarning {
		err = multierr.Append(err, errors.New("warf_critical must not be below warf_warning"))
	}
	if c.UtilizationWarning < 0 {
		err = multierr.Append(err, errors.New("utilization_warning must not be negative"))
	}
	return err
}
