// biome/biome.go
package biome

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category is one of the four planet biomes. The labels must match the
// "biome" column of the star catalog used by the analysis agents.
type Category string

const (
	Cryo           Category = "CRYO"
	Volcanic       Category = "VOLCANIC"
	Bioluminescent Category = "BIOLUMINESCENT"
	Fossilized     Category = "FOSSILIZED"
)

// Categories lists every biome in quadrant order (NW, NE, SW, SE).
var Categories = []Category{Cryo, Volcanic, Bioluminescent, Fossilized}

var titleCaser = cases.Title(language.English)

// DisplayName returns the human label, e.g. "Bioluminescent".
func (c Category) DisplayName() string {
	return titleCaser.String(string(c))
}

// Quadrant is the compass quadrant a coordinate falls in.
type Quadrant string

const (
	Northwest Quadrant = "NW"
	Northeast Quadrant = "NE"
	Southwest Quadrant = "SW"
	Southeast Quadrant = "SE"
)

// Category returns the biome assigned to the quadrant.
func (q Quadrant) Category() Category {
	switch q {
	case Northwest:
		return Cryo
	case Northeast:
		return Volcanic
	case Southwest:
		return Bioluminescent
	default:
		return Fossilized
	}
}

// DefaultMidpoint is the split used by every published client.
const DefaultMidpoint = 50

// Mapper splits the plane at a fixed midpoint. The midpoint is deliberately
// independent of the configured map size.
type Mapper struct {
	MidX int
	MidY int
}

// Default is the mapper shared with the evidence generator and the agents.
var Default = Mapper{MidX: DefaultMidpoint, MidY: DefaultMidpoint}

// Quadrant classifies (x, y). West is x < MidX, north is y >= MidY.
func (m Mapper) Quadrant(x, y int) Quadrant {
	west := x < m.MidX
	north := y >= m.MidY

	switch {
	case west && north:
		return Northwest
	case !west && north:
		return Northeast
	case west && !north:
		return Southwest
	default:
		return Southeast
	}
}

// Classify maps (x, y) to its biome.
func (m Mapper) Classify(x, y int) Category {
	return m.Quadrant(x, y).Category()
}

// Classify maps (x, y) with the default midpoint.
func Classify(x, y int) Category {
	return Default.Classify(x, y)
}
