// Package geo resolves location strings to ordinal cost zones based on
// proximity to a configured reference city. Zone 1 is closest to the
// reference (most expensive), zone 4 is the default for unknown locations.
package geo

import (
	"math"
	"strings"

	"paycast/internal/config"
)

const (
	// ZoneClosest is the zone for locations nearest the reference city.
	ZoneClosest = 1
	// ZoneDefault is the fallback zone for unknown or malformed locations.
	ZoneDefault = 4

	earthRadiusKm = 6371.0
)

// ZoneMapper resolves a location string to a cost zone in [1, 4]
type ZoneMapper interface {
	Zone(location string) int
}

// Mapper implements ZoneMapper from a city coordinate table and distance
// thresholds. It holds no mutable state and is safe for concurrent use.
type Mapper struct {
	reference  config.Coordinates
	cities     map[string]config.Coordinates
	thresholds []float64
}

// NewMapper creates a zone mapper from location settings. City lookup is
// case-insensitive on the trimmed name. A missing reference city makes
// every lookup resolve to the default zone.
func NewMapper(settings config.LocationSettings) *Mapper {
	cities := make(map[string]config.Coordinates, len(settings.Cities))
	for name, coords := range settings.Cities {
		cities[normalize(name)] = coords
	}

	thresholds := settings.ZoneThresholdsKm
	if len(thresholds) == 0 {
		thresholds = []float64{100, 1000, 3000}
	}

	m := &Mapper{
		cities:     cities,
		thresholds: thresholds,
	}
	if ref, ok := cities[normalize(settings.ReferenceCity)]; ok {
		m.reference = ref
	} else {
		// No usable reference: force the default zone everywhere.
		m.cities = nil
	}
	return m
}

// Zone returns the cost zone for a location string. Unknown locations and
// locations farther than the last threshold resolve to ZoneDefault.
func (m *Mapper) Zone(location string) int {
	if m.cities == nil {
		return ZoneDefault
	}

	coords, ok := m.cities[normalize(location)]
	if !ok {
		return ZoneDefault
	}

	dist := haversineKm(m.reference, coords)
	for i, threshold := range m.thresholds {
		if dist <= threshold {
			return ZoneClosest + i
		}
	}
	return ZoneDefault
}

// haversineKm computes the great-circle distance between two coordinates
func haversineKm(a, b config.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
