package format

import (
	"fmt"
	"strings"

	"github.com/motillonc/leetify-tools/model"
)

func Clutches(records []model.ClutchRecord) string {
	lines := make([]string, 0, len(records))
	for _, record := range records {
		result := "LOST"
		if record.ClutchesWon {
			result = "WON"
		}

		line := fmt.Sprintf("Round %d | Team %d | %s | 1v%d | %s | %d kills",
			record.RoundNumber, record.TeamNumber, record.SteamID, record.Opponents(), result, record.TotalKills)
		if record.StartedWithTrade != nil && *record.StartedWithTrade {
			line += " | started with trade"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func OpeningDuels(records []model.OpeningDuelRecord) string {
	lines := make([]string, 0, len(records))
	for _, record := range records {
		traded := "not traded"
		if record.Traded != nil && *record.Traded {
			traded = "traded"
		}

		lines = append(lines, fmt.Sprintf("Round %d [%s] %s vs %s with %s - %s",
			record.Round, RoundClock(record.RoundTime), record.AttackerName, record.VictimName, record.WeaponName(), traded))
	}
	return strings.Join(lines, "\n")
}

// RoundClock formats elapsed round seconds as m:ss.
func RoundClock(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func YourMatch(match model.YourMatch) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Profile: %s\n", match.ProfileID))
	sb.WriteString(fmt.Sprintf("Tracked matches: %d\n", match.TrackedMatches))
	sb.WriteString("Skills:")
	for _, skill := range match.Skills {
		sb.WriteString(fmt.Sprintf("\n  %s: %s (avg %.3f)", skill.Name, number(skill.Value), skill.Average))
	}
	return sb.String()
}
