package forecast

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"paycast/internal/config"
)

// Encoded feature column suffixes. A feature named "<col><suffix>" pulls its
// raw value from column "<col>" and runs it through the matching encoder;
// feature names without a known suffix are read as raw numeric columns.
const (
	SuffixRanked          = "_Enc"
	SuffixProximity       = "_Zone"
	SuffixCostOfLiving    = "_COL"
	SuffixMetroPopulation = "_Pop"
	SuffixNormalizedDate  = "_Norm"
)

type featureKind int

const (
	kindRaw featureKind = iota
	kindRanked
	kindProximity
	kindCostOfLiving
	kindMetroPopulation
	kindNormalizedDate
)

// featureSource resolves one model input column back to its raw column and
// encoder.
type featureSource struct {
	name   string
	column string
	kind   featureKind
}

// resolveFeatures maps the spec's ordered feature list onto raw columns and
// encoders. Every encoded feature must be backed by an encoding binding in
// the spec.
func resolveFeatures(spec *config.ModelSpec) ([]featureSource, error) {
	bindings := make(map[string]featureSource)
	for col := range spec.Encodings.Ranked {
		bindings[col+SuffixRanked] = featureSource{column: col, kind: kindRanked}
	}
	for _, col := range spec.Encodings.Proximity {
		bindings[col+SuffixProximity] = featureSource{column: col, kind: kindProximity}
	}
	for _, col := range spec.Encodings.CostOfLiving {
		bindings[col+SuffixCostOfLiving] = featureSource{column: col, kind: kindCostOfLiving}
	}
	for _, col := range spec.Encodings.MetroPopulation {
		bindings[col+SuffixMetroPopulation] = featureSource{column: col, kind: kindMetroPopulation}
	}
	if spec.Encodings.NormalizedDate {
		col := spec.Model.DateColumn
		bindings[col+SuffixNormalizedDate] = featureSource{column: col, kind: kindNormalizedDate}
	}

	sources := make([]featureSource, 0, len(spec.Model.Features))
	for _, f := range spec.Model.Features {
		if src, ok := bindings[f.Name]; ok {
			src.name = f.Name
			sources = append(sources, src)
			continue
		}
		if hasEncodedSuffix(f.Name) {
			return nil, fmt.Errorf("feature %q looks encoded but has no encoding binding", f.Name)
		}
		sources = append(sources, featureSource{name: f.Name, column: f.Name, kind: kindRaw})
	}
	return sources, nil
}

func hasEncodedSuffix(name string) bool {
	for _, suffix := range []string{SuffixRanked, SuffixProximity, SuffixCostOfLiving, SuffixMetroPopulation, SuffixNormalizedDate} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// numeric converts a raw cell to float64 for raw passthrough features
func numeric(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported numeric value %T", value)
	}
}
