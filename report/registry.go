package report

import (
	json "github.com/goccy/go-json"

	"github.com/motillonc/leetify-tools/format"
)

// Shape is the top-level JSON kind an endpoint is expected to return.
type Shape int

const (
	ShapeObject Shape = iota
	ShapeList
)

func (s Shape) String() string {
	if s == ShapeList {
		return "list"
	}
	return "object"
}

// FormatFunc decodes a payload of an endpoint and renders it as text.
type FormatFunc func(payload []byte) (string, error)

// EndpointSpec describes one per-match endpoint and how its payload becomes a report section.
type EndpointSpec struct {
	Title      string
	PathSuffix string
	Format     FormatFunc
	Shape      Shape
}

// The order of this table is the order of the sections in every report.
var registry = []EndpointSpec{
	{"Your Match", "/your-match", decoded(format.YourMatch), ShapeObject},
	{"Clutches", "/clutches", decoded(format.Clutches), ShapeList},
	{"Opening Duels", "/opening-duels", decoded(format.OpeningDuels), ShapeList},
	{"Kills Timeline", "/timeline/kills", decoded(format.Kills), ShapeList},
	{"Deaths Timeline", "/timeline/deaths", decoded(format.Deaths), ShapeList},
	{"Damage Timeline", "/timeline/damage", decoded(format.Damage), ShapeList},
	{"Enemies Flashed Timeline", "/timeline/enemies-flashed", decoded(format.EnemiesFlashed), ShapeList},
	{"AWP Kills Timeline", "/timeline/awp-kills", decoded(format.AWPKills), ShapeList},
	{"Round Difference Timeline", "/timeline/round-difference", decoded(format.RoundDifference), ShapeList},
	{"Team Economy Timeline", "/timeline/team-economy", decoded(format.Economy), ShapeList},
}

// Registry returns a copy of the endpoint table, in report order.
func Registry() []EndpointSpec {
	endpoints := make([]EndpointSpec, len(registry))
	copy(endpoints, registry)
	return endpoints
}

func decoded[T any](render func(T) string) FormatFunc {
	return func(payload []byte) (string, error) {
		var value T
		if jsonError := json.Unmarshal(payload, &value); jsonError != nil {
			return "", jsonError
		}
		return render(value), nil
	}
}
