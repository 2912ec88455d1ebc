package domain

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/multierr"
)

// StressConfig parameterises the five stress scenarios.
// Price shocks are in price points, spread shocks in basis points,
// CDRs, recoveries and the migration rate are fractions.
type StressConfig struct {
	PriceShockIG  float64 `json:"price_shock_ig" yaml:"price_shock_ig"`
	PriceShockBB  float64 `json:"price_shock_bb" yaml:"price_shock_bb"`
	PriceShockB   float64 `json:"price_shock_b" yaml:"price_shock_b"`
	PriceShockCCC float64 `json:"price_shock_ccc" yaml:"price_shock_ccc"`

	CDRIG  float64 `json:"cdr_ig" yaml:"cdr_ig"`
	CDRBB  float64 `json:"cdr_bb" yaml:"cdr_bb"`
	CDRB   float64 `json:"cdr_b" yaml:"cdr_b"`
	CDRCCC float64 `json:"cdr_ccc" yaml:"cdr_ccc"`

	Recovery1L        float64 `json:"recovery_1l" yaml:"recovery_1l"`
	Recovery2L        float64 `json:"recovery_2l" yaml:"recovery_2l"`
	RecoveryUnsecured float64 `json:"recovery_unsecured" yaml:"recovery_unsecured"`

	SpreadShockIG  float64 `json:"spread_shock_ig" yaml:"spread_shock_ig"`
	SpreadShockBB  float64 `json:"spread_shock_bb" yaml:"spread_shock_bb"`
	SpreadShockB   float64 `json:"spread_shock_b" yaml:"spread_shock_b"`
	SpreadShockCCC float64 `json:"spread_shock_ccc" yaml:"spread_shock_ccc"`

	MigrationRate     float64 `json:"migration_rate" yaml:"migration_rate"`
	ConcentrationTopN int     `json:"concentration_top_n" yaml:"concentration_top_n"`
}

// Stress preset names
const (
	PresetBase     = "Base"
	PresetModerate = "Moderate"
	PresetSevere   = "Severe"
	PresetCOVID    = "COVID-2020"
)

// DefaultStressConfig is the Base preset.
func DefaultStressConfig() StressConfig {
	return StressConfig{
		PriceShockIG: 1, PriceShockBB: 3, PriceShockB: 5, PriceShockCCC: 15,
		CDRIG: 0.005, CDRBB: 0.02, CDRB: 0.05, CDRCCC: 0.15,
		Recovery1L: 0.65, Recovery2L: 0.35, RecoveryUnsecured: 0.15,
		SpreadShockIG: 50, SpreadShockBB: 100, SpreadShockB: 200, SpreadShockCCC: 500,
		MigrationRate:     0.10,
		ConcentrationTopN: 3,
	}
}

var presets = map[string]StressConfig{
	PresetBase: DefaultStressConfig(),
	PresetModerate: {
		PriceShockIG: 2, PriceShockBB: 5, PriceShockB: 8, PriceShockCCC: 20,
		CDRIG: 0.01, CDRBB: 0.04, CDRB: 0.08, CDRCCC: 0.25,
		Recovery1L: 0.60, Recovery2L: 0.30, RecoveryUnsecured: 0.10,
		SpreadShockIG: 75, SpreadShockBB: 150, SpreadShockB: 300, SpreadShockCCC: 700,
		MigrationRate:     0.20,
		ConcentrationTopN: 3,
	},
	PresetSevere: {
		PriceShockIG: 4, PriceShockBB: 10, PriceShockB: 15, PriceShockCCC: 30,
		CDRIG: 0.02, CDRBB: 0.08, CDRB: 0.15, CDRCCC: 0.40,
		Recovery1L: 0.50, Recovery2L: 0.20, RecoveryUnsecured: 0.05,
		SpreadShockIG: 150, SpreadShockBB: 300, SpreadShockB: 500, SpreadShockCCC: 1000,
		MigrationRate:     0.30,
		ConcentrationTopN: 5,
	},
	PresetCOVID: {
		PriceShockIG: 3, PriceShockBB: 8, PriceShockB: 12, PriceShockCCC: 25,
		CDRIG: 0.01, CDRBB: 0.05, CDRB: 0.10, CDRCCC: 0.30,
		Recovery1L: 0.55, Recovery2L: 0.25, RecoveryUnsecured: 0.10,
		SpreadShockIG: 125, SpreadShockBB: 250, SpreadShockB: 450, SpreadShockCCC: 900,
		MigrationRate:     0.25,
		ConcentrationTopN: 3,
	},
}

// Preset returns a named stress preset.
func Preset(name string) (StressConfig, bool) {
	cfg, ok := presets[name]
	return cfg, ok
}

// PresetNames lists the available presets in severity order.
func PresetNames() []string {
	names := []string{PresetBase, PresetModerate, PresetSevere, PresetCOVID}
	sort.SliceStable(names, func(i, j int) bool {
		return presets[names[i]].CDRCCC < presets[names[j]].CDRCCC
	})
	return names
}

// Validate reports every out-of-range stress parameter at once.
func (c StressConfig) Validate() error {
	var err error

	for _, v := range []struct {
		name  string
		value float64
	}{
		{"price_shock_ig", c.PriceShockIG}, {"price_shock_bb", c.PriceShockBB},
		{"price_shock_b", c.PriceShockB}, {"price_shock_ccc", c.PriceShockCCC},
		{"spread_shock_ig", c.SpreadShockIG}, {"spread_shock_bb", c.SpreadShockBB},
		{"spread_shock_b", c.SpreadShockB}, {"spread_shock_ccc", c.SpreadShockCCC},
	} {
		if v.value < 0 {
			err = multierr.Append(err, fmt.Errorf("%s must not be negative", v.name))
		}
	}
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"cdr_ig", c.CDRIG}, {"cdr_bb", c.CDRBB}, {"cdr_b", c.CDRB}, {"cdr_ccc", c.CDRCCC},
		{"recovery_1l", c.Recovery1L}, {"recovery_2l", c.Recovery2L},
		{"recovery_unsecured", c.RecoveryUnsecured}, {"migration_rate", c.MigrationRate},
	} {
		if v.value < 0 || v.value > 1 {
			err = multierr.Append(err, fmt.Errorf("%s must be in [0,1]", v.name))
		}
	}
	if c.ConcentrationTopN < 0 {
		err = multierr.Append(err, errors.New("concentration_top_n must not be negative"))
	}
	return err
}
