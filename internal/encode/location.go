package encode

import "paycast/internal/geo"

// populationByZone approximates metro-area population per cost zone. Zone 1
// (closest to the reference city) covers the largest metro areas.
var populationByZone = map[int]float64{
	1: 5_000_000,
	2: 2_000_000,
	3: 500_000,
	4: 100_000,
}

// ProximityEncoder maps location strings to cost zones via the geo zone
// mapper. Malformed input never aborts encoding: non-string values resolve
// to the default zone.
type ProximityEncoder struct {
	zones geo.ZoneMapper
}

// NewProximityEncoder creates a proximity encoder backed by the given mapper
func NewProximityEncoder(zones geo.ZoneMapper) *ProximityEncoder {
	return &ProximityEncoder{zones: zones}
}

// Fit is a no-op
func (e *ProximityEncoder) Fit(values []any) error {
	return nil
}

// Zone resolves a single raw value to a cost zone
func (e *ProximityEncoder) Zone(value any) int {
	s, ok := value.(string)
	if !ok {
		return geo.ZoneDefault
	}
	return e.zones.Zone(s)
}

// Transform encodes a column of locations to cost zones
func (e *ProximityEncoder) Transform(values []any) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(e.Zone(v))
	}
	return out
}

// CostOfLivingEncoder maps locations to cost-of-living tiers. It uses the
// same proximity zones as ProximityEncoder; the tier is the zone.
type CostOfLivingEncoder struct {
	zones geo.ZoneMapper
}

// NewCostOfLivingEncoder creates a cost-of-living encoder
func NewCostOfLivingEncoder(zones geo.ZoneMapper) *CostOfLivingEncoder {
	return &CostOfLivingEncoder{zones: zones}
}

// Fit is a no-op
func (e *CostOfLivingEncoder) Fit(values []any) error {
	return nil
}

// Transform encodes a column of locations to cost-of-living tiers
func (e *CostOfLivingEncoder) Transform(values []any) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			out[i] = float64(geo.ZoneDefault)
			continue
		}
		out[i] = float64(e.zones.Zone(s))
	}
	return out
}

// MetroPopulationEncoder maps locations to approximate metro-area
// populations derived from the proximity zone.
type MetroPopulationEncoder struct {
	zones geo.ZoneMapper
}

// NewMetroPopulationEncoder creates a metro population encoder
func NewMetroPopulationEncoder(zones geo.ZoneMapper) *MetroPopulationEncoder {
	return &MetroPopulationEncoder{zones: zones}
}

// Fit is a no-op
func (e *MetroPopulationEncoder) Fit(values []any) error {
	return nil
}

// Transform encodes a column of locations to approximate populations.
// Non-string values get the smallest population bucket.
func (e *MetroPopulationEncoder) Transform(values []any) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			out[i] = populationByZone[geo.ZoneDefault]
			continue
		}
		zone := e.zones.Zone(s)
		pop, ok := populationByZone[zone]
		if !ok {
			pop = populationByZone[geo.ZoneDefault]
		}
		out[i] = pop
	}
	return out
}
