package stress

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/internal/modules/portfolio"
	"github.com/aristath/rampwatch/internal/modules/ratings"
	"github.com/aristath/rampwatch/pkg/formulas"
)

// PriceShock haircuts each asset's price by its tier's shock, clipped at 0.
// Loss is base market value minus stressed market value; unpriced assets lose nothing.
// LossPct is relative to base market value.
func PriceShock(assets []domain.Asset, cfg domain.StressConfig) ScenarioResult {
	rows := make([]AssetLoss, 0, len(assets))
	lossByTier := make(map[ratings.Tier]float64)
	total, baseMV := 0.0, 0.0

	for _, a := range assets {
		tier := ratings.TierOf(a.RatingMoodys)
		row := AssetLoss{
			AssetID:     a.AssetID,
			IssuerName:  a.IssuerName,
			Tier:        tier,
			ParAmount:   a.ParAmount,
			MarketPrice: a.MarketPrice,
			Haircut:     priceHaircut(cfg, tier),
		}
		if price, ok := a.Price(); ok {
			stressed := math.Max(price-row.Haircut, 0)
			row.StressedPrice = domain.Float(stressed)
			mv := a.ParAmount * price / 100
			row.Loss = mv - a.ParAmount*stressed/100
			baseMV += mv
		}
		lossByTier[tier] += row.Loss
		total += row.Loss
		rows = append(rows, row)
	}

	return ScenarioResult{
		Name:        ScenarioPriceShock,
		LossDollars: total,
		LossPct:     formulas.SafeDiv(total, baseMV),
		Detail:      fmt.Sprintf("Worst tier: %s", worstTier(lossByTier)),
		Assets:      rows,
	}
}

// worstTier picks the tier with the largest loss; ties go to the tier name
// that sorts first. An empty tape has no worst tier.
func worstTier(lossByTier map[ratings.Tier]float64) string {
	if len(lossByTier) == 0 {
		return "N/A"
	}
	tiers := make([]string, 0, len(lossByTier))
	for t := range lossByTier {
		tiers = append(tiers, string(t))
	}
	sort.Strings(tiers)

	worst := tiers[0]
	for _, t := range tiers[1:] {
		if lossByTier[ratings.Tier(t)] > lossByTier[ratings.Tier(worst)] {
			worst = t
		}
	}
	return worst
}

// DefaultStress applies the tier CDR to par and the lien recovery to the
// defaulted par: loss = par × CDR × (1 − recovery). LossPct is relative to par.
func DefaultStress(assets []domain.Asset, cfg domain.StressConfig) ScenarioResult {
	rec := recoveries(cfg)
	rows := make([]AssetLoss, 0, len(assets))
	total := 0.0
	exposed := 0

	for _, a := range assets {
		tier := ratings.TierOf(a.RatingMoodys)
		row := AssetLoss{
			AssetID:    a.AssetID,
			IssuerName: a.IssuerName,
			Tier:       tier,
			ParAmount:  a.ParAmount,
			CDR:        defaultRate(cfg, tier),
			Recovery:   rec.For(a.LienType),
		}
		row.DefaultedPar = a.ParAmount * row.CDR
		row.Loss = row.DefaultedPar * (1 - row.Recovery)
		if row.DefaultedPar > 0 {
			exposed++
		}
		total += row.Loss
		rows = append(rows, row)
	}

	return ScenarioResult{
		Name:        ScenarioDefault,
		LossDollars: total,
		LossPct:     formulas.SafeDiv(total, domain.TotalPar(assets)),
		Detail:      fmt.Sprintf("%d assets with default exposure", exposed),
		Assets:      rows,
	}
}

// SpreadWidening converts each tier's spread shock into a market value loss
// through estimated duration: loss = MV × duration × bps / 10000.
// Assets without a maturity are assumed to have FallbackYearsToMaturity left.
// LossPct is relative to base market value.
func SpreadWidening(assets []domain.Asset, cfg domain.StressConfig, asOf time.Time) ScenarioResult {
	rows := make([]AssetLoss, 0, len(assets))
	shocks := make([]float64, 0, len(assets))
	total, baseMV := 0.0, 0.0

	for _, a := range assets {
		tier := ratings.TierOf(a.RatingMoodys)
		years, ok := a.YearsToMaturity(asOf)
		if !ok {
			years = FallbackYearsToMaturity
		}
		row := AssetLoss{
			AssetID:        a.AssetID,
			IssuerName:     a.IssuerName,
			Tier:           tier,
			ParAmount:      a.ParAmount,
			SpreadShockBps: spreadShock(cfg, tier),
			Duration:       years * portfolio.DurationFactor,
		}
		mv := a.MarketValue()
		row.Loss = mv * row.Duration * row.SpreadShockBps / 10000
		baseMV += mv
		total += row.Loss
		shocks = append(shocks, row.SpreadShockBps)
		rows = append(rows, row)
	}

	return ScenarioResult{
		Name:        ScenarioSpread,
		LossDollars: total,
		LossPct:     formulas.SafeDiv(total, baseMV),
		Detail:      fmt.Sprintf("Avg shock: +%.0fbps", formulas.Mean(shocks)),
		Assets:      rows,
	}
}

// DowngradeMigration downgrades, within each tier, the largest
// max(1, ⌊n × MigrationRate⌋) positions by par one notch. A migrated asset loses
// par × max(0, new tier haircut − old tier haircut) / 100. LossPct is relative to par.
func DowngradeMigration(assets []domain.Asset, cfg domain.StressConfig) (ScenarioResult, float64) {
	tiers := make([]ratings.Tier, len(assets))
	byTier := make(map[ratings.Tier][]int)
	for i, a := range assets {
		tiers[i] = ratings.TierOf(a.RatingMoodys)
		byTier[tiers[i]] = append(byTier[tiers[i]], i)
	}

	migrated := make([]bool, len(assets))
	for _, idx := range byTier {
		n := int(float64(len(idx)) * cfg.MigrationRate)
		if n < 1 {
			n = 1
		}
		ranked := append([]int(nil), idx...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return assets[ranked[i]].ParAmount > assets[ranked[j]].ParAmount
		})
		if n > len(ranked) {
			n = len(ranked)
		}
		for _, i := range ranked[:n] {
			migrated[i] = true
		}
	}

	rows := make([]AssetLoss, 0, len(assets))
	total, cccPar := 0.0, 0.0
	for i, a := range assets {
		row := AssetLoss{
			AssetID:      a.AssetID,
			IssuerName:   a.IssuerName,
			Tier:         tiers[i],
			StressedTier: tiers[i],
			ParAmount:    a.ParAmount,
			Migrated:     migrated[i],
		}
		if migrated[i] {
			row.StressedTier = ratings.TierOf(ratings.DowngradeOneNotch(a.RatingMoodys))
			row.Haircut = math.Max(0, priceHaircut(cfg, row.StressedTier)-priceHaircut(cfg, row.Tier))
			row.Loss = a.ParAmount * row.Haircut / 100
		}
		if row.StressedTier == ratings.TierCCC {
			cccPar += a.ParAmount
		}
		total += row.Loss
		rows = append(rows, row)
	}

	totalPar := domain.TotalPar(assets)
	stressedCCC := formulas.SafeDiv(cccPar, totalPar)
	return ScenarioResult{
		Name:        ScenarioMigration,
		LossDollars: total,
		LossPct:     formulas.SafeDiv(total, totalPar),
		Detail:      fmt.Sprintf("Stressed CCC: %.1f%%", stressedCCC*100),
		Assets:      rows,
	}, stressedCCC
}

// Concentration defaults every position of the ConcentrationTopN largest
// obligors by par, recovering by lien. Only those positions appear in Assets.
// LossPct is relative to par.
func Concentration(assets []domain.Asset, cfg domain.StressConfig) ScenarioResult {
	obligors := portfolio.Exposures(assets, portfolio.ByIssuer, portfolio.Par)
	if cfg.ConcentrationTopN < len(obligors) {
		obligors = obligors[:max(cfg.ConcentrationTopN, 0)]
	}
	top := make(map[string]bool, len(obligors))
	names := make([]string, 0, len(obligors))
	for _, o := range obligors {
		top[o.Name] = true
		names = append(names, o.Name)
	}

	rec := recoveries(cfg)
	rows := make([]AssetLoss, 0)
	total := 0.0
	for _, a := range assets {
		if !top[a.IssuerName] {
			continue
		}
		row := AssetLoss{
			AssetID:    a.AssetID,
			IssuerName: a.IssuerName,
			ParAmount:  a.ParAmount,
			Recovery:   rec.For(a.LienType),
		}
		row.Loss = a.ParAmount * (1 - row.Recovery)
		total += row.Loss
		rows = append(rows, row)
	}

	if len(names) > 3 {
		names = names[:3]
	}
	return ScenarioResult{
		Name:        ScenarioConcentration,
		LossDollars: total,
		LossPct:     formulas.SafeDiv(total, domain.TotalPar(assets)),
		Detail:      fmt.Sprintf("Top %d: %s", cfg.ConcentrationTopN, strings.Join(names, ", ")),
		Assets:      rows,
	}
}
