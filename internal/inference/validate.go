// Package inference serves single and batch predictions from stored model
// bundles: schema-driven input validation, a read-through model cache, and
// a bounded worker pool for batch requests.
package inference

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"paycast/internal/forecast"
)

// ValidateInput checks a raw feature map against the model's input schema.
// Every problem is collected; the returned slice is empty for valid input.
//
// Validation is strict where encoding is lenient: a ranked value outside the
// vocabulary fails here even though the encoder would happily map it to the
// unknown sentinel. That asymmetry is deliberate; the lenient path exists
// for training data, the strict path protects callers from silently getting
// a worst-case prediction for a typo.
func ValidateInput(f *forecast.Forecaster, features map[string]any) []string {
	schema := f.InputSchema()
	var errs []string

	ranked := make([]string, 0, len(schema.RankedFeatures))
	for col := range schema.RankedFeatures {
		ranked = append(ranked, col)
	}
	sort.Strings(ranked)

	for _, col := range ranked {
		value, ok := features[col]
		if !ok {
			errs = append(errs, fmt.Sprintf("missing ranked feature %q", col))
			continue
		}
		s, isString := value.(string)
		if !isString {
			errs = append(errs, fmt.Sprintf("ranked feature %q must be a string, got %T", col, value))
			continue
		}
		vocab := schema.RankedFeatures[col]
		if !contains(vocab, s) {
			errs = append(errs, fmt.Sprintf("unknown value %q for feature %q (known: %s)",
				s, col, strings.Join(vocab, ", ")))
		}
	}

	for _, col := range schema.ProximityFeatures {
		value, ok := features[col]
		if !ok {
			errs = append(errs, fmt.Sprintf("missing location feature %q", col))
			continue
		}
		if _, isString := value.(string); !isString {
			errs = append(errs, fmt.Sprintf("location feature %q must be a string, got %T", col, value))
		}
	}

	for _, col := range schema.NumericalFeatures {
		value, ok := features[col]
		if !ok {
			errs = append(errs, fmt.Sprintf("missing numerical feature %q", col))
			continue
		}
		if !isNumeric(value) {
			errs = append(errs, fmt.Sprintf("numerical feature %q must be numeric, got %v", col, value))
		}
	}

	if schema.DateFeature != "" {
		if _, ok := features[schema.DateFeature]; !ok {
			errs = append(errs, fmt.Sprintf("missing date feature %q", schema.DateFeature))
		}
	}

	return errs
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func isNumeric(value any) bool {
	switch v := value.(type) {
	case float64, float32, int, int64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return err == nil
	default:
		return false
	}
}
