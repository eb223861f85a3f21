package encode

import (
	"fmt"
	"time"
)

// DateNormalizer linearly maps dates onto [0, 1]: the earliest date seen
// during Fit becomes 0.0, the latest 1.0. A degenerate single-date corpus
// normalizes everything to 1.0. Transform before Fit is a fatal usage error.
type DateNormalizer struct {
	min    time.Time
	max    time.Time
	fitted bool
}

// NewDateNormalizer creates an unfitted normalizer
func NewDateNormalizer() *DateNormalizer {
	return &DateNormalizer{}
}

// NewFittedDateNormalizer restores a normalizer from persisted bounds
func NewFittedDateNormalizer(min, max time.Time) *DateNormalizer {
	return &DateNormalizer{min: min, max: max, fitted: true}
}

// Fitted reports whether Fit has been called
func (n *DateNormalizer) Fitted() bool {
	return n.fitted
}

// Bounds returns the fitted min and max dates
func (n *DateNormalizer) Bounds() (time.Time, time.Time) {
	return n.min, n.max
}

// Fit records the min and max parseable date in the column. A column with
// no parseable dates fits to a degenerate now/now range.
func (n *DateNormalizer) Fit(dates []any) error {
	var min, max time.Time
	seen := false
	for _, raw := range dates {
		t, err := parseDate(raw)
		if err != nil {
			continue
		}
		if !seen {
			min, max = t, t
			seen = true
			continue
		}
		if t.Before(min) {
			min = t
		}
		if t.After(max) {
			max = t
		}
	}

	if !seen {
		now := time.Now()
		min, max = now, now
	}

	n.min, n.max = min, max
	n.fitted = true
	return nil
}

// Transform maps each date to [0, 1]. Unparseable cells map to 0.0.
func (n *DateNormalizer) Transform(dates []any) ([]float64, error) {
	if !n.fitted {
		return nil, fmt.Errorf("date normalizer must be fitted before transform")
	}

	out := make([]float64, len(dates))
	span := n.max.Sub(n.min).Seconds()

	for i, raw := range dates {
		if span == 0 {
			out[i] = 1.0
			continue
		}
		t, err := parseDate(raw)
		if err != nil {
			out[i] = 0.0
			continue
		}
		v := t.Sub(n.min).Seconds() / span
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		out[i] = v
	}
	return out, nil
}
