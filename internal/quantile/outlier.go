package quantile

// IQROutlierMask flags rows whose value falls outside 1.5 interquartile
// ranges of [Q1, Q3]. The returned mask is true for rows to keep.
func IQROutlierMask(values []float64) []bool {
	keep := make([]bool, len(values))
	if len(values) == 0 {
		return keep
	}

	q1 := WeightedQuantile(values, nil, 0.25)
	q3 := WeightedQuantile(values, nil, 0.75)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	for i, v := range values {
		keep[i] = v >= lower && v <= upper
	}
	return keep
}
