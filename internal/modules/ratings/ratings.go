// Package ratings maps credit ratings onto the ordinal scale, tier buckets and
// Moody's rating factors used by every other analytics module.
package ratings

import (
	"strings"
)

// Tier is a coarse rating bucket.
type Tier string

const (
	TierIG  Tier = "IG"
	TierBB  Tier = "BB"
	TierB   Tier = "B"
	TierCCC Tier = "CCC"
	TierNR  Tier = "NR"
)

// Tiers lists every tier in order of increasing credit risk, NR last.
var Tiers = []Tier{TierIG, TierBB, TierB, TierCCC, TierNR}

// DefaultFactor is the B3 factor applied to any rating missing from the factor table.
const DefaultFactor = 3490

// scale is the 21-point Moody's ordinal scale, best first.
var scale = []string{
	"Aaa", "Aa1", "Aa2", "Aa3",
	"A1", "A2", "A3",
	"Baa1", "Baa2", "Baa3",
	"Ba1", "Ba2", "Ba3",
	"B1", "B2", "B3",
	"Caa1", "Caa2", "Caa3",
	"Ca", "C",
}

var ordinals = func() map[string]int {
	m := make(map[string]int, len(scale))
	for i, r := range scale {
		m[r] = i + 1
	}
	return m
}()

var factors = map[string]int{
	"Aaa": 1, "Aa1": 10, "Aa2": 20, "Aa3": 40,
	"A1": 70, "A2": 120, "A3": 180,
	"Baa1": 260, "Baa2": 360, "Baa3": 610,
	"Ba1": 940, "Ba2": 1350, "Ba3": 1766,
	"B1": 2220, "B2": 2720, "B3": 3490,
	"Caa1": 4770, "Caa2": 6500, "Caa3": 8070,
	"Ca": 10000, "C": 10000,
}

// S&P notation to the equivalent Moody's notch. D maps to the bottom of the scale.
var spToMoodys = map[string]string{
	"AAA": "Aaa", "AA+": "Aa1", "AA": "Aa2", "AA-": "Aa3",
	"A+": "A1", "A": "A2", "A-": "A3",
	"BBB+": "Baa1", "BBB": "Baa2", "BBB-": "Baa3",
	"BB+": "Ba1", "BB": "Ba2", "BB-": "Ba3",
	"B+": "B1", "B": "B2", "B-": "B3",
	"CCC+": "Caa1", "CCC": "Caa2", "CCC-": "Caa3",
	"CC": "Ca", "C": "C", "D": "C",
}

// Ordinal returns the 1-based position of rating on the Moody's scale (Aaa=1, C=21).
func Ordinal(rating string) (int, bool) {
	o, ok := ordinals[rating]
	return o, ok
}

// Normalize trims rating and rewrites S&P notation as Moody's.
// Strings that are already Moody's, or unknown, are returned trimmed.
func Normalize(rating string) string {
	r := strings.TrimSpace(rating)
	if _, ok := ordinals[r]; ok {
		return r
	}
	if m, ok := spToMoodys[strings.ToUpper(r)]; ok {
		return m
	}
	return r
}

// TierOf buckets a Moody's rating.
//
// Exact scale members map by ordinal. Anything else goes through the prefix
// fallback: "Caa" anywhere, or exactly "Ca"/"C", is CCC; a leading "Ba" is BB;
// a leading "B" is B; a leading "A" is IG. Everything else, including "", is NR.
func TierOf(rating string) Tier {
	r := strings.TrimSpace(rating)
	if r == "" {
		return TierNR
	}
	if o, ok := ordinals[r]; ok {
		switch {
		case o <= 10:
			return TierIG
		case o <= 13:
			return TierBB
		case o <= 16:
			return TierB
		default:
			return TierCCC
		}
	}

	switch {
	case strings.Contains(r, "Caa") || r == "Ca" || r == "C":
		return TierCCC
	case strings.HasPrefix(r, "Ba"):
		return TierBB
	case strings.HasPrefix(r, "B"):
		return TierB
	case strings.HasPrefix(r, "A"):
		return TierIG
	default:
		return TierNR
	}
}

// DowngradeOneNotch returns the next-worse rating. Ca moves to C; C and unknown
// ratings come back unchanged.
func DowngradeOneNotch(rating string) string {
	o, ok := ordinals[rating]
	if !ok || o >= len(scale) {
		return rating
	}
	return scale[o]
}

// Factor returns the Moody's rating factor, DefaultFactor when rating is not in the table.
func Factor(rating string) int {
	if f, ok := factors[rating]; ok {
		return f
	}
	return DefaultFactor
}
