package testing

import (
	"fmt"
	"time"

	"github.com/aristath/rampwatch/internal/domain"
)

// NewAssetFixtures returns a small, clean tape: first-lien single-B loans
// spread over four industries, all priced and rated.
func NewAssetFixtures() []domain.Asset {
	industries := []string{"Software", "Healthcare", "Retail", "Media"}
	ratings := []string{"B1", "B2", "B2", "B3"}

	assets := make([]domain.Asset, 0, 8)
	for i := 0; i < 8; i++ {
		assets = append(assets, domain.Asset{
			AssetID:      fmt.Sprintf("LX%04d", i+1),
			IssuerName:   fmt.Sprintf("Issuer %c", 'A'+i),
			ParAmount:    2_500_000,
			MarketPrice:  domain.Float(97 + float64(i%3)),
			Spread:       domain.Float(3.25 + float64(i%4)*0.25),
			Coupon:       domain.Float(8.5),
			Floor:        domain.Float(0.5),
			Index:        "SOFR",
			MaturityDate: domain.Date(2030, time.June, 30),
			RatingMoodys: ratings[i%len(ratings)],
			LienType:     "First Lien",
			IndustryGICS: industries[i%len(industries)],
			Country:      "US",
		})
	}
	return assets
}

// NewSnapshotFixture wraps NewAssetFixtures in a snapshot for warehouse on asOf.
func NewSnapshotFixture(warehouse string, asOf time.Time) domain.Snapshot {
	return domain.Snapshot{
		Warehouse: warehouse,
		AsOf:      asOf,
		Assets:    NewAssetFixtures(),
	}
}

// NewDistressedSnapshotFixture is NewSnapshotFixture with one defaulted CCC loan
// and one 2L loan added, enough to trip several alert rules.
func NewDistressedSnapshotFixture(warehouse string, asOf time.Time) domain.Snapshot {
	s := NewSnapshotFixture(warehouse, asOf)
	s.Assets = append(s.Assets,
		domain.Asset{
			AssetID:              "LX9001",
			IssuerName:           "Troubled Co",
			ParAmount:            4_000_000,
			MarketPrice:          domain.Float(45),
			RatingMoodys:         "Caa3",
			OriginalRatingMoodys: "B2",
			LienType:             "First Lien",
			IndustryGICS:         "Retail",
			IsDefaulted:          true,
		},
		domain.Asset{
			AssetID:      "LX9002",
			IssuerName:   "Junior Holdings",
			ParAmount:    3_000_000,
			MarketPrice:  domain.Float(88),
			RatingMoodys: "Caa1",
			LienType:     "Second Lien",
			IndustryGICS: "Software",
		},
	)
	return s
}
