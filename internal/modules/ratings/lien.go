package ratings

import "strings"

// LienType is the closed set of collateral positions.
type LienType string

const (
	FirstLien  LienType = "1L"
	SecondLien LienType = "2L"
	Unsecured  LienType = "Unsecured"
	OtherLien  LienType = "Other"
)

var lienAliases = map[string]LienType{
	"1L":             FirstLien,
	"FIRST LIEN":     FirstLien,
	"1ST LIEN":       FirstLien,
	"SENIOR SECURED": FirstLien,
	"2L":             SecondLien,
	"SECOND LIEN":    SecondLien,
	"2ND LIEN":       SecondLien,
	"UNSECURED":      Unsecured,
	"SUBORDINATED":   Unsecured,
	"MEZZANINE":      Unsecured,
}

// ClassifyLien maps a free-text lien label onto LienType.
//
// Known aliases match case-insensitively first. Labels that miss the alias table
// fall through to substring checks in order "1", "2", "UN"; anything left is OtherLien.
func ClassifyLien(label string) LienType {
	l := strings.ToUpper(strings.TrimSpace(label))
	if l == "" {
		return OtherLien
	}
	if t, ok := lienAliases[l]; ok {
		return t
	}
	switch {
	case strings.Contains(l, "1"):
		return FirstLien
	case strings.Contains(l, "2"):
		return SecondLien
	case strings.Contains(l, "UN"):
		return Unsecured
	default:
		return OtherLien
	}
}

// RecoveryRates holds the assumed recovery fraction per lien type.
type RecoveryRates struct {
	FirstLien  float64
	SecondLien float64
	Unsecured  float64
}

// For returns the recovery rate for a lien label. OtherLien recovers at the first-lien rate.
func (r RecoveryRates) For(label string) float64 {
	switch ClassifyLien(label) {
	case SecondLien:
		return r.SecondLien
	case Unsecured:
		return r.Unsecured
	default:
		return r.FirstLien
	}
}
