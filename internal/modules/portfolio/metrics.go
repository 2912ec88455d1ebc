package portfolio

import (
	"strings"

	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/internal/modules/ratings"
	"github.com/aristath/rampwatch/pkg/formulas"
)

// DefaultTopN is the size of the single-name table when the caller passes 0.
const DefaultTopN = 10

// diversityUnits maps the number of distinct issuers in one industry to diversity units.
var diversityUnits = map[int]float64{
	1: 1.0, 2: 1.5, 3: 2.0, 4: 2.33, 5: 2.67,
	6: 3.0, 7: 3.25, 8: 3.5, 9: 3.75, 10: 4.0,
}

// WARF is the weighted average Moody's rating factor Σ(w·RF)/Σw.
// Unrated and unrecognised ratings carry the B3 factor.
func WARF(assets []domain.Asset, w Weight) float64 {
	w = weightOrPar(w)
	total := totalWeight(assets, w)
	if total <= 0 {
		return 0
	}
	sum := 0.0
	for _, a := range assets {
		sum += w(a) * float64(ratings.Factor(strings.TrimSpace(a.RatingMoodys)))
	}
	return formulas.SafeDiv(sum, total)
}

// DiversityUnits returns the credit given to an industry holding n distinct issuers.
// Beyond 10 issuers each additional name adds 0.2.
func DiversityUnits(n int) float64 {
	if n <= 0 {
		return 0
	}
	if n <= 10 {
		return diversityUnits[n]
	}
	return 4.0 + float64(n-10)*0.2
}

// DiversityScore sums DiversityUnits over industries, rounded to one decimal.
// Assets missing an industry or issuer do not count.
func DiversityScore(assets []domain.Asset) float64 {
	issuers := make(map[string]map[string]struct{})
	for _, a := range assets {
		if a.IndustryGICS == "" || a.IssuerName == "" {
			continue
		}
		set, ok := issuers[a.IndustryGICS]
		if !ok {
			set = make(map[string]struct{})
			issuers[a.IndustryGICS] = set
		}
		set[a.IssuerName] = struct{}{}
	}

	score := 0.0
	for _, set := range issuers {
		score += DiversityUnits(len(set))
	}
	return formulas.Round(score, 1)
}

// CCCPct is the fraction of par rated in the CCC tier.
func CCCPct(assets []domain.Asset) float64 {
	total := domain.TotalPar(assets)
	ccc := 0.0
	for _, a := range assets {
		if ratings.TierOf(a.RatingMoodys) == ratings.TierCCC {
			ccc += a.ParAmount
		}
	}
	return formulas.SafeDiv(ccc, total)
}

// TopIssuer is one row of the single-name table.
type TopIssuer struct {
	Issuer        string  `json:"issuer"`
	Par           float64 `json:"par"`
	Pct           float64 `json:"pct"`
	CumulativePct float64 `json:"cumulative_pct"`
}

// SingleName summarises issuer concentration.
type SingleName struct {
	MaxPct  float64     `json:"max_single_issuer_pct"`
	MaxName string      `json:"max_single_issuer_name"`
	Top     []TopIssuer `json:"top_n"`
	TopNPct float64     `json:"top_n_total_pct"`
}

// SingleNameConcentration returns the largest issuer and the top-N issuer table
// by par with a running cumulative percentage. topN <= 0 means DefaultTopN.
func SingleNameConcentration(assets []domain.Asset, topN int) SingleName {
	if topN <= 0 {
		topN = DefaultTopN
	}
	rows := Exposures(assets, ByIssuer, Par)
	result := SingleName{Top: []TopIssuer{}}
	if len(rows) == 0 {
		return result
	}

	result.MaxPct = rows[0].Pct
	result.MaxName = rows[0].Name

	if len(rows) > topN {
		rows = rows[:topN]
	}
	cum := 0.0
	for _, r := range rows {
		cum += r.Pct
		result.Top = append(result.Top, TopIssuer{
			Issuer:        r.Name,
			Par:           r.Par,
			Pct:           r.Pct,
			CumulativePct: cum,
		})
	}
	result.TopNPct = cum
	return result
}

// Liens is the lien mix of a tape as fractions of par.
type Liens struct {
	FirstLienPct  float64    `json:"first_lien_pct"`
	SecondLienPct float64    `json:"second_lien_pct"`
	UnsecuredPct  float64    `json:"unsecured_pct"`
	OtherPct      float64    `json:"other_pct"`
	Table         []Exposure `json:"breakdown"`
}

// LienBreakdown classifies each asset's lien label and sums par per class.
// Unclassifiable and missing labels land in OtherPct, so the four fractions sum to 1.
// Table lists the raw labels as reported on the tape.
func LienBreakdown(assets []domain.Asset) Liens {
	total := domain.TotalPar(assets)
	result := Liens{Table: []Exposure{}}
	if total <= 0 {
		return result
	}

	for _, a := range assets {
		pct := a.ParAmount / total
		switch ratings.ClassifyLien(a.LienType) {
		case ratings.FirstLien:
			result.FirstLienPct += pct
		case ratings.SecondLien:
			result.SecondLienPct += pct
		case ratings.Unsecured:
			result.UnsecuredPct += pct
		default:
			result.OtherPct += pct
		}
	}
	result.Table = Exposures(assets, func(a domain.Asset) string {
		return strings.TrimSpace(a.LienType)
	}, Par)
	return result
}
