package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestDefaultWarehouseConfig_IsValid(t *testing.T) {
	require.NoError(t, DefaultWarehouseConfig().Validate())
}

func TestWarehouseConfig_ValidateCollectsAllProblems(t *testing.T) {
	cfg := DefaultWarehouseConfig()
	cfg.AdvanceRate = 1.5
	cfg.MaxCCCPct = -0.1
	cfg.WarehouseType = "CLO 3.0"
	cfg.Alerts.WARFCritical = 1000

	err := cfg.Validate()
	require.Error(t, err)

	errs := multierr.Errors(err)
	assert.Len(t, errs, 4)
	assert.Contains(t, err.Error(), "advance_rate")
	assert.Contains(t, err.Error(), "max_ccc_pct")
	assert.Contains(t, err.Error(), "warehouse_type")
	assert.Contains(t, err.Error(), "warf_critical")
}

func TestAlertConfig_IsEnabled(t *testing.T) {
	cfg := DefaultAlertConfig()
	assert.True(t, cfg.IsEnabled("oc_breach"))

	cfg.DisabledRules = []string{"oc_breach"}
	assert.False(t, cfg.IsEnabled("oc_breach"))
	assert.True(t, cfg.IsEnabled("oc_proximity"))
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		cfg, ok := Preset(name)
		require.True(t, ok, name)
		assert.NoError(t, cfg.Validate(), name)
	}

	base, _ := Preset(PresetBase)
	severe, _ := Preset(PresetSevere)
	assert.Equal(t, DefaultStressConfig(), base)
	assert.Greater(t, severe.PriceShockB, base.PriceShockB)
	assert.Equal(t, 5, severe.ConcentrationTopN)
	assert.Equal(t, PresetBase, PresetNames()[0])
	assert.Equal(t, PresetSevere, PresetNames()[len(PresetNames())-1])

	_, ok := Preset("Armageddon")
	assert.False(t, ok)
}

func TestStressConfig_ValidateRejectsOutOfRange(t *testing.T) {
	cfg := DefaultStressConfig()
	cfg.Recovery1L = 1.2
	cfg.PriceShockB = -1
	cfg.ConcentrationTopN = -3

	assert.Len(t, multierr.Errors(cfg.Validate()), 3)
}

func TestAsset_MarketValueAndMaturity(t *testing.T) {
	asOf := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Asset{ParAmount: 2_000_000, MarketPrice: Float(97.5), MaturityDate: Date(2026, 12, 31)}

	assert.Equal(t, 1_950_000.0, a.MarketValue())
	years, ok := a.YearsToMaturity(asOf)
	require.True(t, ok)
	assert.InDelta(t, 1095.0/365.0, years, 1e-12)

	matured := Asset{MaturityDate: Date(2020, 6, 30)}
	years, ok = matured.YearsToMaturity(asOf)
	assert.True(t, ok)
	assert.Equal(t, 0.0, years)

	unpriced := Asset{ParAmount: 1_000_000}
	assert.Equal(t, 0.0, unpriced.MarketValue())
	_, ok = unpriced.YearsToMaturity(asOf)
	assert.False(t, ok)
}

func TestSeverity_Rank(t *testing.T) {
	assert.Less(t, SeverityCritical.Rank(), SeverityWarning.Rank())
	assert.Less(t, SeverityWarning.Rank(), SeverityInfo.Rank())
	assert.Equal(t, 3, Severity("DEBUG").Rank())
}
