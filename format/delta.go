// Package format turns decoded Leetify payloads into the plain text sections of a match report. All functions are pure
// and never modify their input.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/motillonc/leetify-tools/model"
)

// Renders a single emitted line of a cumulative timeline.
type lineFunc func(round int, increment, total float64) string

// Deltas renders cumulative per-player series as a log of increments. Rounds are processed in ascending order, a line
// is emitted for every round in which the running total grew, and rounds without growth are skipped. A total that
// shrinks is not a valid cumulative counter, so instead of being hidden it is reported as an anomaly line.
func Deltas(label, unit string, series []model.Series) string {
	return deltas(label, unit, series, func(round int, increment, _ float64) string {
		return fmt.Sprintf("Round %d: +%s %s", round, number(increment), unit)
	})
}

// AWPKills works like Deltas, but every line also carries the running total.
func AWPKills(series []model.Series) string {
	return deltas("AWP Kills", "AWP kills", series, func(round int, increment, total float64) string {
		return fmt.Sprintf("Round %d: +%s AWP kills (total %s)", round, number(increment), number(total))
	})
}

func deltas(label, unit string, series []model.Series, line lineFunc) string {
	paragraphs := make([]string, 0, len(series))

	for _, entity := range series {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("%s: %s (%s)", label, entity.Name, entity.SteamID))

		previous := 0.0
		for _, step := range entity.Rounds.Sorted() {
			switch {
			case step.Value > previous:
				sb.WriteString("\n" + line(step.Round, step.Value-previous, step.Value))
			case step.Value < previous:
				sb.WriteString(fmt.Sprintf("\nRound %d: anomaly, cumulative %s dropped from %s to %s",
					step.Round, unit, number(previous), number(step.Value)))
			}
			previous = step.Value
		}

		paragraphs = append(paragraphs, sb.String())
	}

	return strings.Join(paragraphs, "\n\n")
}

func number(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
