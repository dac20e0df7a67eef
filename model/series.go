package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// RoundSeries maps a round number to the value recorded for that round. The upstream API keys rounds by strings, the
// conversion to int happens once while decoding.
type RoundSeries map[int]float64

// RoundValue is a single entry of a RoundSeries.
type RoundValue struct {
	Round int
	Value float64
}

func (r *RoundSeries) UnmarshalJSON(data []byte) error {
	raw := make(map[string]float64)
	if jsonError := json.Unmarshal(data, &raw); jsonError != nil {
		return jsonError
	}

	series := make(RoundSeries, len(raw))
	for key, value := range raw {
		round, convError := strconv.Atoi(strings.TrimSpace(key))
		if convError != nil {
			return fmt.Errorf("model: round key %q is not a number", key)
		}
		if _, duplicate := series[round]; duplicate {
			return fmt.Errorf("model: round %d appears more than once", round)
		}
		series[round] = value
	}

	*r = series
	return nil
}

// Sorted returns the entries ordered by ascending round number.
func (r RoundSeries) Sorted() []RoundValue {
	values := make([]RoundValue, 0, len(r))
	for round, value := range r {
		values = append(values, RoundValue{round, value})
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].Round < values[j].Round
	})
	return values
}

// Series is a per-player cumulative timeline.
type Series struct {
	Name    string      `json:"name"`
	SteamID string      `json:"steam64Id"`
	Rounds  RoundSeries `json:"rounds"`
}

// TeamSeries is a per-team timeline, used for round difference and economy.
type TeamSeries struct {
	TeamNumber int         `json:"teamNumber"`
	Name       string      `json:"name"`
	Rounds     RoundSeries `json:"rounds"`
}

// Label returns the team name, falling back to its number.
func (t TeamSeries) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("Team %d", t.TeamNumber)
}
