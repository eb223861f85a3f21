package encode

import (
	"log/slog"
	"math"
	"time"
)

const daysPerYear = 365.25

// SampleWeighter computes recency-based training weights:
//
//	weight = (1 + ageYears)^-k
//
// Age is clipped at zero, so future-dated records weigh the same as records
// from today. With k = 0 every row weighs 1.0.
type SampleWeighter struct {
	k       float64
	refDate time.Time
	logger  *slog.Logger
}

// NewSampleWeighter creates a weighter with decay k relative to refDate.
// A zero refDate means "now".
func NewSampleWeighter(k float64, refDate time.Time, logger *slog.Logger) *SampleWeighter {
	if refDate.IsZero() {
		refDate = time.Now()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SampleWeighter{k: k, refDate: refDate, logger: logger}
}

// K returns the decay parameter
func (w *SampleWeighter) K() float64 {
	return w.k
}

// RefDate returns the reference date ages are computed against
func (w *SampleWeighter) RefDate() time.Time {
	return w.refDate
}

// Fit is a no-op
func (w *SampleWeighter) Fit(values []any) error {
	return nil
}

// Transform computes a weight per date. When the whole column fails to
// parse the weighter falls back to uniform 1.0 weights and logs a warning
// instead of failing the training run; individual unparseable cells also
// weigh 1.0.
func (w *SampleWeighter) Transform(dates []any) []float64 {
	out := make([]float64, len(dates))
	parsed := 0
	for i, raw := range dates {
		t, err := parseDate(raw)
		if err != nil {
			out[i] = 1.0
			continue
		}
		parsed++
		ageYears := w.refDate.Sub(t).Hours() / 24 / daysPerYear
		if ageYears < 0 {
			ageYears = 0
		}
		out[i] = math.Pow(1+ageYears, -w.k)
	}

	if len(dates) > 0 && parsed == 0 {
		w.logger.Warn("date column unparseable, falling back to uniform sample weights",
			"rows", len(dates))
	} else if failed := len(dates) - parsed; failed > 0 {
		w.logger.Warn("some dates unparseable, weighting those rows uniformly",
			"failed", failed, "rows", len(dates))
	}

	return out
}
