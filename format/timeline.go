package format

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/motillonc/leetify-tools/model"
)

// Economy tiers, by the team's total money at the start of a round.
const (
	TierEco   = "ECO"
	TierForce = "FORCE"
	TierHalf  = "HALF"
	TierFull  = "FULL"
)

const (
	ecoLimit   = 10000
	forceLimit = 20000
	halfLimit  = 30000
)

func Kills(series []model.Series) string {
	return Deltas("Kills", "kills", series)
}

func Deaths(series []model.Series) string {
	return Deltas("Deaths", "deaths", series)
}

func Damage(series []model.Series) string {
	return Deltas("Damage", "damage", series)
}

func EnemiesFlashed(series []model.Series) string {
	return Deltas("Enemies Flashed", "enemies flashed", series)
}

// Transition classifies the change of a team's round difference between two consecutive rounds.
func Transition(previous, current float64) string {
	switch {
	case current > previous:
		return "WON"
	case current < previous:
		return "LOST"
	default:
		return "NO CHANGE"
	}
}

// RoundDifference renders one line per round and team. The first round is the baseline; every following round is
// classified against the one before it.
func RoundDifference(teams []model.TeamSeries) string {
	paragraphs := make([]string, 0, len(teams))

	for _, team := range teams {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Round Difference: %s", team.Label()))

		steps := team.Rounds.Sorted()
		for i, step := range steps {
			if i == 0 {
				sb.WriteString(fmt.Sprintf("\nRound %d: diff %s", step.Round, signed(step.Value)))
				continue
			}
			sb.WriteString(fmt.Sprintf("\nRound %d: diff %s - %s",
				step.Round, signed(step.Value), Transition(steps[i-1].Value, step.Value)))
		}

		paragraphs = append(paragraphs, sb.String())
	}

	return strings.Join(paragraphs, "\n\n")
}

// Tier maps the money of a team to its economy tier. The limits are exclusive: 10000 is already a force buy.
func Tier(money float64) string {
	switch {
	case money < ecoLimit:
		return TierEco
	case money < forceLimit:
		return TierForce
	case money < halfLimit:
		return TierHalf
	default:
		return TierFull
	}
}

// Economy renders the money of every team per round, with its tier and the change since the previous round.
func Economy(teams []model.TeamSeries) string {
	paragraphs := make([]string, 0, len(teams))

	for _, team := range teams {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Team Economy: %s", team.Label()))

		var previous *float64
		for _, step := range team.Rounds.Sorted() {
			change := "n/a"
			if previous != nil {
				change = signedMoney(step.Value - *previous)
			}
			sb.WriteString(fmt.Sprintf("\nRound %d: $%s [%s] change %s",
				step.Round, humanize.Comma(int64(step.Value)), Tier(step.Value), change))

			value := step.Value
			previous = &value
		}

		paragraphs = append(paragraphs, sb.String())
	}

	return strings.Join(paragraphs, "\n\n")
}

func signed(value float64) string {
	if value > 0 {
		return "+" + number(value)
	}
	return number(value)
}

func signedMoney(value float64) string {
	switch {
	case value > 0:
		return "+$" + humanize.Comma(int64(value))
	case value < 0:
		return "-$" + humanize.Comma(int64(-value))
	default:
		return "$0"
	}
}
