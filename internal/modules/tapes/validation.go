// Package tapes stores warehouse tapes and checks them before they reach the engine.
package tapes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/internal/utils"
)

// IssueSeverity grades a tape problem. HARD issues reject the tape.
type IssueSeverity string

const (
	IssueHard IssueSeverity = "HARD"
	IssueSoft IssueSeverity = "SOFT"
)

// Plausible price band, in points of par.
const (
	MinPlausiblePrice = 20.0
	MaxPlausiblePrice = 120.0
)

// maxSampleIDs caps how many offending asset ids an issue carries.
const maxSampleIDs = 5

// Issue is one validation finding.
type Issue struct {
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
	AssetIDs []string      `json:"asset_ids,omitempty"`
}

var assetValidator = utils.NewValidator()

// Validate checks a tape for missing required fields, duplicate asset ids and
// implausible prices. Issues come back HARD first, in a fixed order.
func Validate(assets []domain.Asset) []Issue {
	issues := make([]Issue, 0)

	missing := make(map[string][]string)
	for i, a := range assets {
		for field := range utils.FieldErrors(assetValidator.Struct(a)) {
			missing[field] = append(missing[field], rowLabel(i, a))
		}
	}
	fields := make([]string, 0, len(missing))
	for f := range missing {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		issues = append(issues, Issue{
			Severity: IssueHard,
			Message:  fmt.Sprintf("%d assets with missing or invalid %s", len(missing[f]), f),
			AssetIDs: sample(missing[f]),
		})
	}

	if dupes := duplicates(assets); len(dupes) > 0 {
		issues = append(issues, Issue{
			Severity: IssueHard,
			Message:  fmt.Sprintf("Duplicate asset_ids found: %d duplicates", len(dupes)),
			AssetIDs: sample(dupes),
		})
	}

	var outliers []string
	for i, a := range assets {
		if p, ok := a.Price(); ok && (p < MinPlausiblePrice || p > MaxPlausiblePrice) {
			outliers = append(outliers, rowLabel(i, a))
		}
	}
	if len(outliers) > 0 {
		issues = append(issues, Issue{
			Severity: IssueSoft,
			Message: fmt.Sprintf("Found %d assets with price < %.0f or > %.0f",
				len(outliers), MinPlausiblePrice, MaxPlausiblePrice),
			AssetIDs: sample(outliers),
		})
	}

	return issues
}

// HasHard reports whether any issue rejects the tape.
func HasHard(issues []Issue) bool {
	for _, is := range issues {
		if is.Severity == IssueHard {
			return true
		}
	}
	return false
}

// duplicates returns every row whose asset id occurs more than once, in tape order.
func duplicates(assets []domain.Asset) []string {
	counts := make(map[string]int, len(assets))
	for _, a := range assets {
		if a.AssetID != "" {
			counts[a.AssetID]++
		}
	}
	var out []string
	for _, a := range assets {
		if counts[a.AssetID] > 1 {
			out = append(out, a.AssetID)
		}
	}
	return out
}

func rowLabel(i int, a domain.Asset) string {
	if strings.TrimSpace(a.AssetID) != "" {
		return a.AssetID
	}
	return fmt.Sprintf("row %d", i+1)
}

func sample(ids []string) []string {
	if len(ids) > maxSampleIDs {
		return ids[:maxSampleIDs]
	}
	return ids
}
