package forecast

import "sort"

// Schema is a read-only projection over a forecaster describing the raw
// input it expects. Feature groups are derived by classifying each model
// feature by its encoder; whatever is left after subtracting the encoded
// groups is numerical.
type Schema struct {
	// RankedFeatures maps each ranked input column to its known vocabulary.
	RankedFeatures map[string][]string `json:"ranked_features"`
	// ProximityFeatures lists input columns resolved through the geo zone
	// capability (proximity, cost of living, metro population).
	ProximityFeatures []string `json:"proximity_features"`
	// NumericalFeatures lists raw numeric input columns.
	NumericalFeatures []string `json:"numerical_features"`
	// DateFeature names the date input column when date normalization is
	// part of the feature set, empty otherwise.
	DateFeature string `json:"date_feature,omitempty"`
	// AllFeatureNames lists the encoded model input columns in order.
	AllFeatureNames []string `json:"all_feature_names"`

	Targets   []string  `json:"targets"`
	Quantiles []float64 `json:"quantiles"`
}

// InputSchema derives the raw input schema from the forecaster's feature
// bindings
func (f *Forecaster) InputSchema() *Schema {
	schema := &Schema{
		RankedFeatures:  map[string][]string{},
		AllFeatureNames: f.spec.FeatureNames(),
		Targets:         f.spec.Model.Targets,
		Quantiles:       f.spec.Model.Quantiles,
	}

	proximity := map[string]bool{}
	numerical := map[string]bool{}
	for _, src := range f.sources {
		switch src.kind {
		case kindRanked:
			if enc, ok := f.ranked[src.column]; ok {
				schema.RankedFeatures[src.column] = enc.Vocabulary()
			}
		case kindProximity, kindCostOfLiving, kindMetroPopulation:
			proximity[src.column] = true
		case kindNormalizedDate:
			schema.DateFeature = src.column
		case kindRaw:
			numerical[src.column] = true
		}
	}

	schema.ProximityFeatures = sortedKeys(proximity)
	schema.NumericalFeatures = sortedKeys(numerical)
	return schema
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
