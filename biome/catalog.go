package biome

// StarPattern is one row of the reference star catalog.
type StarPattern struct {
	PrimaryStar  string   `json:"primary_star"`
	NebulaType   string   `json:"nebula_type"`
	StellarColor string   `json:"stellar_color"`
	Quadrant     Quadrant `json:"quadrant"`
	Biome        Category `json:"biome"`
}

var starCatalog = []StarPattern{
	{"blue_giant", "ice_blue", "blue_white", Northwest, Cryo},
	{"blue_giant", "crystalline", "blue_white", Northwest, Cryo},
	{"blue_supergiant", "ice_blue", "cyan", Northwest, Cryo},

	{"red_dwarf", "orange_red", "red_orange", Northeast, Volcanic},
	{"red_dwarf_binary", "fire", "red_orange", Northeast, Volcanic},
	{"red_giant", "orange_red", "deep_red", Northeast, Volcanic},

	{"green_pulsar", "purple_magenta", "green_purple", Southwest, Bioluminescent},
	{"pulsar", "purple", "green", Southwest, Bioluminescent},
	{"magnetar", "bioluminescent", "cyan_purple", Southwest, Bioluminescent},

	{"yellow_sun", "golden", "yellow_gold", Southeast, Fossilized},
	{"yellow_dwarf", "amber", "warm_yellow", Southeast, Fossilized},
	{"orange_sun", "golden_brown", "amber", Southeast, Fossilized},
}

// Catalog returns a copy of the reference star catalog.
func Catalog() []StarPattern {
	out := make([]StarPattern, len(starCatalog))
	copy(out, starCatalog)
	return out
}

// CatalogFor returns the catalog rows for one biome.
func CatalogFor(c Category) []StarPattern {
	var out []StarPattern
	for _, row := range starCatalog {
		if row.Biome == c {
			out = append(out, row)
		}
	}
	return out
}
