package alerts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/internal/modules/portfolio"
	"github.com/aristath/rampwatch/internal/modules/ratings"
)

// Watchlist thresholds
const (
	DistressedPrice      = 80.0
	ConcentratedIssuer   = 0.015
	unknownRatingOrdinal = 99
)

// ReasonSeparator joins watchlist reasons for flat exports.
const ReasonSeparator = " | "

// JoinReasons renders a watchlist entry's reasons as one string.
func JoinReasons(e domain.WatchlistEntry) string {
	return strings.Join(e.Reasons, ReasonSeparator)
}

// BuildWatchlist flags assets that are defaulted, CCC-rated, distressed,
// downgraded since purchase, or part of a concentrated issuer. Entries are
// ordered CRITICAL first, then by par descending. An empty tape yields an
// empty list.
func BuildWatchlist(warehouse string, assets []domain.Asset) []domain.WatchlistEntry {
	out := make([]domain.WatchlistEntry, 0)
	totalPar := domain.TotalPar(assets)
	if len(assets) == 0 || totalPar <= 0 {
		return out
	}

	issuerPct := make(map[string]float64)
	for _, e := range portfolio.Exposures(assets, portfolio.ByIssuer, portfolio.Par) {
		issuerPct[e.Name] = e.Pct
	}

	for _, a := range assets {
		var reasons []string
		severity := domain.SeverityInfo
		raise := func(to domain.Severity) {
			if to.Rank() < severity.Rank() {
				severity = to
			}
		}

		if a.IsDefaulted {
			reasons = append(reasons, "Defaulted")
			raise(domain.SeverityCritical)
		}
		if ratings.TierOf(a.RatingMoodys) == ratings.TierCCC {
			reasons = append(reasons, fmt.Sprintf("CCC-rated (%s)", a.RatingMoodys))
			raise(domain.SeverityWarning)
		}
		if p, ok := a.Price(); ok && p < DistressedPrice {
			reasons = append(reasons, fmt.Sprintf("Distressed price (%.1f)", p))
			raise(domain.SeverityWarning)
		}
		if from, to, ok := downgraded(a); ok {
			reasons = append(reasons, fmt.Sprintf("Downgraded (%s -> %s)", from, to))
			raise(domain.SeverityWarning)
		}
		if pct := issuerPct[a.IssuerName]; a.IssuerName != "" && pct > ConcentratedIssuer {
			reasons = append(reasons, fmt.Sprintf("Concentrated (%.1f%% of portfolio)", pct*100))
		}

		if len(reasons) == 0 {
			continue
		}
		out = append(out, domain.WatchlistEntry{
			Warehouse: warehouse,
			AssetID:   a.AssetID,
			Issuer:    a.IssuerName,
			ParAmount: a.ParAmount,
			Price:     a.MarketPrice,
			Rating:    a.RatingMoodys,
			Reasons:   reasons,
			Severity:  severity,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Severity.Rank(), out[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].ParAmount > out[j].ParAmount
	})
	return out
}

// downgraded compares original and current ratings after normalising both to
// Moody's notation. An unrecognised rating ranks below every known one.
func downgraded(a domain.Asset) (from, to string, ok bool) {
	if strings.TrimSpace(a.OriginalRatingMoodys) == "" || strings.TrimSpace(a.RatingMoodys) == "" {
		return "", "", false
	}
	from = ratings.Normalize(a.OriginalRatingMoodys)
	to = ratings.Normalize(a.RatingMoodys)
	if from == to {
		return "", "", false
	}
	return from, to, ordinalOrUnknown(to) > ordinalOrUnknown(from)
}

func ordinalOrUnknown(rating string) int {
	if n, ok := ratings.Ordinal(rating); ok {
		return n
	}
	return unknownRatingOrdinal
}
