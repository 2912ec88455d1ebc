package domain

import "time"

// Severity ranks alerts and watchlist rows. Lower Rank sorts first.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// Rank orders severities CRITICAL < WARNING < INFO; unknown values sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	default:
		return 3
	}
}

// Alert categories
const (
	CategoryCompliance    = "Compliance"
	CategoryProximity     = "Threshold Proximity"
	CategoryConcentration = "Concentration"
	CategoryDataQuality   = "Data Quality"
	CategoryRisk          = "Risk"
)

// Alert is a content-addressed rule outcome. The same warehouse, rule and category key
// always produce the same AlertID.
type Alert struct {
	AlertID        string    `json:"alert_id"`
	Warehouse      string    `json:"warehouse"`
	Severity       Severity  `json:"severity"`
	Category       string    `json:"category"`
	Title          string    `json:"title"`
	Detail         string    `json:"detail"`
	MetricName     string    `json:"metric_name"`
	CurrentValue   float64   `json:"current_value"`
	ThresholdValue float64   `json:"threshold_value"`
	Timestamp      time.Time `json:"timestamp"`
}

// WatchlistEntry is one flagged asset with every reason it was flagged.
type WatchlistEntry struct {
	Warehouse string   `json:"warehouse"`
	AssetID   string   `json:"asset_id"`
	Issuer    string   `json:"issuer"`
	ParAmount float64  `json:"par_amount"`
	Price     *float64 `json:"price,omitempty"`
	Rating    string   `json:"rating"`
	Reasons   []string `json:"reasons"`
	Severity  Severity `json:"severity"`
}
