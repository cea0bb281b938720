package normalize

// Canonical record fields that accept aliases.
const (
	FieldSpeciesName        = "species_name"
	FieldScientificName     = "scientific_name"
	FieldHabitat            = "habitat"
	FieldDepthRange         = "depth_range"
	FieldTemperatureRange   = "temperature_range"
	FieldDistribution       = "distribution"
	FieldConservationStatus = "conservation_status"
	FieldDiet               = "diet"
	FieldSize               = "size"
	FieldWeight             = "weight"
	FieldCharacteristics    = "characteristics"
	FieldThreats            = "threats"
	FieldLatitude           = "latitude"
	FieldLongitude          = "longitude"
	FieldObservationDate    = "observation_date"
)

// defaultAliases lists the source keys tried for each field, first match wins.
var defaultAliases = map[string][]string{
	FieldSpeciesName:        {"species_name", "common_name", "name"},
	FieldScientificName:     {"scientific_name", "scientificName", "binomial"},
	FieldHabitat:            {"habitat", "environment"},
	FieldDepthRange:         {"depth_range", "depth"},
	FieldTemperatureRange:   {"temperature_range", "temperature"},
	FieldDistribution:       {"distribution", "range", "location"},
	FieldConservationStatus: {"conservation_status", "status", "iucn_status"},
	FieldDiet:               {"diet", "food", "feeding"},
	FieldSize:               {"size", "length", "body_size"},
	FieldWeight:             {"weight", "mass"},
	FieldCharacteristics:    {"characteristics", "description"},
	FieldThreats:            {"threats", "threat"},
	FieldLatitude:           {"latitude", "lat", "decimalLatitude"},
	FieldLongitude:          {"longitude", "lng", "lon", "decimalLongitude"},
	FieldObservationDate:    {"observation_date", "date", "eventDate"},
}

// IsField reports whether name is a canonical field that takes aliases.
func IsField(name string) bool {
	_, ok := defaultAliases[name]
	return ok
}
