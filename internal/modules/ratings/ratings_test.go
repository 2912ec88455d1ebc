package ratings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierOf(t *testing.T) {
	tests := []struct {
		rating string
		want   Tier
	}{
		{"Aaa", TierIG},
		{"Baa3", TierIG},
		{"Ba1", TierBB},
		{"Ba3", TierBB},
		{"B1", TierB},
		{"B3", TierB},
		{"Caa1", TierCCC},
		{"Ca", TierCCC},
		{"C", TierCCC},
		{" B2 ", TierB},
		{"", TierNR},
		{"NR", TierNR},
		{"WR", TierNR},
		// prefix fallback
		{"Caa1 *-", TierCCC},
		{"Ba2u", TierBB},
		{"Baa1 (sf)", TierBB},
		{"B1u", TierB},
		{"A1 *+", TierIG},
		{"Aa", TierIG},
	}

	for _, tt := range tests {
		t.Run(tt.rating, func(t *testing.T) {
			assert.Equal(t, tt.want, TierOf(tt.rating))
		})
	}
}

func TestDowngradeOneNotch(t *testing.T) {
	assert.Equal(t, "Aa1", DowngradeOneNotch("Aaa"))
	assert.Equal(t, "Ba1", DowngradeOneNotch("Baa3"))
	assert.Equal(t, "Caa1", DowngradeOneNotch("B3"))
	assert.Equal(t, "C", DowngradeOneNotch("Ca"))
	assert.Equal(t, "C", DowngradeOneNotch("C"))
	assert.Equal(t, "NR", DowngradeOneNotch("NR"))
	assert.Equal(t, "", DowngradeOneNotch(""))
}

func TestDowngradeOneNotch_EveryStepMovesDown(t *testing.T) {
	for _, r := range scale[:len(scale)-1] {
		before, _ := Ordinal(r)
		after, ok := Ordinal(DowngradeOneNotch(r))
		assert.True(t, ok, r)
		assert.Equal(t, before+1, after, r)
	}
}

func TestFactor(t *testing.T) {
	assert.Equal(t, 1, Factor("Aaa"))
	assert.Equal(t, 2220, Factor("B1"))
	assert.Equal(t, 10000, Factor("C"))
	assert.Equal(t, DefaultFactor, Factor("NR"))
	assert.Equal(t, DefaultFactor, Factor(""))
	assert.Equal(t, 3490, Factor("B3"))
}

func TestOrdinal(t *testing.T) {
	o, ok := Ordinal("Aaa")
	assert.True(t, ok)
	assert.Equal(t, 1, o)

	o, ok = Ordinal("C")
	assert.True(t, ok)
	assert.Equal(t, 21, o)

	_, ok = Ordinal("BBB")
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "B1", Normalize("B1"))
	assert.Equal(t, "B1", Normalize(" B+ "))
	assert.Equal(t, "Baa3", Normalize("BBB-"))
	assert.Equal(t, "Caa2", Normalize("ccc"))
	assert.Equal(t, "C", Normalize("D"))
	assert.Equal(t, "NR", Normalize("NR"))
	assert.Equal(t, "", Normalize("  "))
}

func TestClassifyLien(t *testing.T) {
	tests := []struct {
		label string
		want  LienType
	}{
		{"1L", FirstLien},
		{"first lien", FirstLien},
		{"Senior Secured", FirstLien},
		{"1st Lien", FirstLien},
		{"2L", SecondLien},
		{"Second Lien", SecondLien},
		{"Unsecured", Unsecured},
		{"Subordinated", Unsecured},
		{"Mezzanine", Unsecured},
		// substring fallback
		{"1L TLB", FirstLien},
		{"2nd lien term loan", SecondLien},
		{"Senior Unsecured Notes", Unsecured},
		{"Revolver", OtherLien},
		{"", OtherLien},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyLien(tt.label))
		})
	}
}

func TestRecoveryRates_For(t *testing.T) {
	r := RecoveryRates{FirstLien: 0.65, SecondLien: 0.35, Unsecured: 0.15}

	assert.Equal(t, 0.65, r.For("1L"))
	assert.Equal(t, 0.35, r.For("Second Lien"))
	assert.Equal(t, 0.15, r.For("unsecured"))
	assert.Equal(t, 0.65, r.For(""), "missing lien recovers as first lien")
	assert.Equal(t, 0.65, r.For("Revolver"), "unclassified lien recovers as first lien")
}
