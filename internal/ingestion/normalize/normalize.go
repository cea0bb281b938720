package normalize

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"

	"gorm.io/datatypes"

	"github.com/smallbiznis/oceandata/internal/dataset/domain"
	"github.com/smallbiznis/oceandata/internal/ingestion/parser"
)

const listSeparator = "; "

// Normalizer maps raw records onto the canonical record shape.
// It is safe for concurrent use.
type Normalizer struct {
	aliases map[string][]string
}

// New builds a normalizer with the built-in aliases followed by extra ones.
// Extra entries for unknown fields are ignored.
func New(extra map[string][]string) *Normalizer {
	aliases := make(map[string][]string, len(defaultAliases))
	for field, keys := range defaultAliases {
		merged := append([]string(nil), keys...)
		for _, key := range extra[field] {
			key = strings.TrimSpace(key)
			if key != "" && !slices.Contains(merged, key) {
				merged = append(merged, key)
			}
		}
		aliases[field] = merged
	}
	return &Normalizer{aliases: aliases}
}

// Normalize never fails. Fields without a usable alias stay nil and
// raw_data always carries the original record.
func (n *Normalizer) Normalize(rec parser.Record) domain.Record {
	f := rec.Fields

	return domain.Record{
		SpeciesName:        n.text(f, FieldSpeciesName),
		ScientificName:     n.text(f, FieldScientificName),
		Habitat:            n.text(f, FieldHabitat),
		DepthRange:         n.rangeText(f, FieldDepthRange, "min_depth", "max_depth", "m"),
		TemperatureRange:   n.rangeText(f, FieldTemperatureRange, "min_temp", "max_temp", "°C"),
		Distribution:       n.text(f, FieldDistribution),
		ConservationStatus: n.text(f, FieldConservationStatus),
		Diet:               n.text(f, FieldDiet),
		Size:               n.text(f, FieldSize),
		Weight:             n.text(f, FieldWeight),
		Characteristics:    n.text(f, FieldCharacteristics),
		Threats:            n.text(f, FieldThreats),
		Latitude:           n.number(f, FieldLatitude),
		Longitude:          n.number(f, FieldLongitude),
		ObservationDate:    n.text(f, FieldObservationDate),
		RawData:            rawData(rec),
	}
}

func (n *Normalizer) lookup(fields map[string]any, field string) (string, bool) {
	for _, key := range n.aliases[field] {
		if text, ok := stringify(fields[key]); ok {
			return text, true
		}
	}
	return "", false
}

func (n *Normalizer) text(fields map[string]any, field string) *string {
	text, ok := n.lookup(fields, field)
	if !ok {
		return nil
	}
	return &text
}

func (n *Normalizer) rangeText(fields map[string]any, field, minKey, maxKey, unit string) *string {
	if text := n.text(fields, field); text != nil {
		return text
	}
	low, okLow := stringify(fields[minKey])
	high, okHigh := stringify(fields[maxKey])
	if !okLow || !okHigh {
		return nil
	}
	text := low + "-" + high + unit
	return &text
}

func (n *Normalizer) number(fields map[string]any, field string) *float64 {
	text, ok := n.lookup(fields, field)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	return &value
}

// stringify renders a raw value as text. Empty strings, nulls and empty
// lists are absent. Zero numbers are present.
func stringify(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		trimmed := strings.TrimSpace(v)
		return trimmed, trimmed != ""
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if text, ok := stringify(item); ok {
				parts = append(parts, text)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, listSeparator), true
	case []string:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return stringify(items)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(encoded), true
	}
}

func rawData(rec parser.Record) datatypes.JSON {
	if len(rec.Raw) > 0 {
		return datatypes.JSON(rec.Raw)
	}
	encoded, err := json.Marshal(rec.Fields)
	if err != nil || rec.Fields == nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(encoded)
}
