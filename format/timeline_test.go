package format

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/motillonc/leetify-tools/model"
)

func TestTier(t *testing.T) {
	tests := []struct {
		money float64
		want  string
	}{
		{0, TierEco},
		{9999, TierEco},
		{10000, TierForce},
		{19999, TierForce},
		{20000, TierHalf},
		{29999, TierHalf},
		{30000, TierFull},
		{62000, TierFull},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Tier(tt.money), "money %v", tt.money)
	}
}

func TestTransition(t *testing.T) {
	diffs := []float64{0, 1, 1, 0}

	var got []string
	for i := 1; i < len(diffs); i++ {
		got = append(got, Transition(diffs[i-1], diffs[i]))
	}

	assert.Equal(t, []string{"WON", "NO CHANGE", "LOST"}, got)
}

func TestRoundDifference(t *testing.T) {
	teams := []model.TeamSeries{
		{TeamNumber: 2, Rounds: model.RoundSeries{4: 0, 2: 1, 1: 0, 3: 1}},
		{TeamNumber: 3, Name: "FaZe", Rounds: model.RoundSeries{1: 0, 2: -1}},
	}

	want := "Round Difference: Team 2\n" +
		"Round 1: diff 0\n" +
		"Round 2: diff +1 - WON\n" +
		"Round 3: diff +1 - NO CHANGE\n" +
		"Round 4: diff 0 - LOST\n" +
		"\n" +
		"Round Difference: FaZe\n" +
		"Round 1: diff 0\n" +
		"Round 2: diff -1 - LOST"

	if diff := cmp.Diff(want, RoundDifference(teams)); diff != "" {
		t.Errorf("RoundDifference() mismatch (-want +got):\n%s", diff)
	}
}

func TestEconomy(t *testing.T) {
	teams := []model.TeamSeries{
		{TeamNumber: 3, Name: "CT", Rounds: model.RoundSeries{3: 9000, 1: 4000, 4: 31000, 2: 12500, 5: 31000}},
	}

	want := "Team Economy: CT\n" +
		"Round 1: $4,000 [ECO] change n/a\n" +
		"Round 2: $12,500 [FORCE] change +$8,500\n" +
		"Round 3: $9,000 [ECO] change -$3,500\n" +
		"Round 4: $31,000 [FULL] change +$22,000\n" +
		"Round 5: $31,000 [FULL] change $0"

	if diff := cmp.Diff(want, Economy(teams)); diff != "" {
		t.Errorf("Economy() mismatch (-want +got):\n%s", diff)
	}
}
