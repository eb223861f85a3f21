package encode

import "sort"

// UnknownRank is the numeric value fed to the model for categories absent
// from the vocabulary. Ranks in the mapping are validated non-negative, so
// the unknown value sits strictly below every known rank; under a
// non-decreasing monotone constraint an unknown category can therefore
// never predict above a known one.
const UnknownRank = -1.0

// Rank is the tagged outcome of encoding a single categorical value
type Rank struct {
	Value int
	Known bool
}

// RankedCategoryEncoder maps ordinal categorical values to integer ranks
// using a static table supplied at construction time.
type RankedCategoryEncoder struct {
	mapping map[string]int
}

// NewRankedCategoryEncoder creates an encoder from a name -> rank table.
// The table is copied; later mutation of the argument has no effect.
func NewRankedCategoryEncoder(mapping map[string]int) *RankedCategoryEncoder {
	copied := make(map[string]int, len(mapping))
	for k, v := range mapping {
		copied[k] = v
	}
	return &RankedCategoryEncoder{mapping: copied}
}

// Fit is a no-op; the mapping is static
func (e *RankedCategoryEncoder) Fit(values []any) error {
	return nil
}

// Encode returns the tagged rank for a single value. Non-string values and
// values absent from the table are Unknown.
func (e *RankedCategoryEncoder) Encode(value any) Rank {
	s, ok := value.(string)
	if !ok {
		return Rank{Known: false}
	}
	rank, ok := e.mapping[s]
	return Rank{Value: rank, Known: ok}
}

// Transform encodes a column of values. Unknown categories deterministically
// map to UnknownRank on every call.
func (e *RankedCategoryEncoder) Transform(values []any) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if r := e.Encode(v); r.Known {
			out[i] = float64(r.Value)
		} else {
			out[i] = UnknownRank
		}
	}
	return out
}

// Contains reports whether a value is part of the known vocabulary
func (e *RankedCategoryEncoder) Contains(value any) bool {
	return e.Encode(value).Known
}

// Vocabulary returns the known category names sorted by rank
func (e *RankedCategoryEncoder) Vocabulary() []string {
	names := make([]string, 0, len(e.mapping))
	for name := range e.mapping {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if e.mapping[names[i]] != e.mapping[names[j]] {
			return e.mapping[names[i]] < e.mapping[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// Mapping returns a copy of the underlying rank table
func (e *RankedCategoryEncoder) Mapping() map[string]int {
	copied := make(map[string]int, len(e.mapping))
	for k, v := range e.mapping {
		copied[k] = v
	}
	return copied
}
