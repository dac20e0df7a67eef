package model

import (
	"bytes"
	"fmt"
)

type MatchID string

// Flag decodes the upstream's boolean-like fields, which arrive either as JSON booleans or as 0/1 numbers.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*f = true
	case "false", "0", "null":
		*f = false
	default:
		return fmt.Errorf("model: %s is not a boolean flag", data)
	}
	return nil
}

type ClutchRecord struct {
	RoundNumber      int    `json:"roundNumber"`
	TeamNumber       int    `json:"teamNumber"`
	SteamID          string `json:"steam64Id"`
	Handicap         int    `json:"handicap"`
	ClutchesWon      Flag   `json:"clutchesWon"`
	TotalKills       int    `json:"totalKills"`
	StartedWithTrade *bool  `json:"startedWithTrade"`
}

// Opponents returns the number of enemies the clutching player faced. The upstream stores the handicap as a negative
// number that is one short of the opponent count.
func (c ClutchRecord) Opponents() int {
	handicap := c.Handicap
	if handicap < 0 {
		handicap = -handicap
	}
	return handicap + 1
}

type Weapon struct {
	ItemName string `json:"itemName"`
}

type OpeningDuelRecord struct {
	Round          int     `json:"round"`
	RoundTime      float64 `json:"roundTime"`
	AttackerName   string  `json:"attackerName"`
	VictimName     string  `json:"victimName"`
	AttackerWeapon *Weapon `json:"attackerWeapon"`
	Traded         *bool   `json:"traded"`
}

// WeaponName returns the attacker's weapon, or "Unknown" if the payload did not include one.
func (o OpeningDuelRecord) WeaponName() string {
	if o.AttackerWeapon == nil || o.AttackerWeapon.ItemName == "" {
		return "Unknown"
	}
	return o.AttackerWeapon.ItemName
}

type SkillStat struct {
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Average float64 `json:"average"`
}

// YourMatch is the identity summary of the tracked player for one match.
type YourMatch struct {
	ProfileID      string      `json:"profileId"`
	TrackedMatches int         `json:"trackedMatches"`
	Skills         []SkillStat `json:"skills"`
}

type HistoryGame struct {
	ID       string `json:"id"`
	MapName  string `json:"mapName"`
	GameDate string `json:"gameFinishedAt"`
}

// History is the response of the match history endpoint.
type History struct {
	Games []HistoryGame `json:"games"`
}

// MatchIDs returns the ids of all games in order of appearance, skipping empty and repeated ids.
func (h *History) MatchIDs() []MatchID {
	seen := make(map[string]bool, len(h.Games))
	ids := make([]MatchID, 0, len(h.Games))
	for _, game := range h.Games {
		if game.ID == "" || seen[game.ID] {
			continue
		}
		seen[game.ID] = true
		ids = append(ids, MatchID(game.ID))
	}
	return ids
}
