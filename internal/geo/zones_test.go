package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"paycast/internal/config"
)

func testSettings() config.LocationSettings {
	return config.LocationSettings{
		ReferenceCity: "San Francisco",
		Cities: map[string]config.Coordinates{
			"San Francisco": {Lat: 37.7749, Lon: -122.4194},
			"Oakland":       {Lat: 37.8044, Lon: -122.2712},
			"Seattle":       {Lat: 47.6062, Lon: -122.3321},
			"Austin":        {Lat: 30.2672, Lon: -97.7431},
			"London":        {Lat: 51.5074, Lon: -0.1278},
		},
		ZoneThresholdsKm: []float64{100, 1500, 3000},
	}
}

func TestMapperZone(t *testing.T) {
	mapper := NewMapper(testSettings())

	tests := []struct {
		location string
		want     int
	}{
		{"San Francisco", 1},
		{"Oakland", 1},
		{"Seattle", 2},
		{"Austin", 2},
		{"London", 4},
		{"Nowhereville", 4},
		{"", 4},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			assert.Equal(t, tt.want, mapper.Zone(tt.location))
		})
	}
}

func TestMapperCaseInsensitive(t *testing.T) {
	mapper := NewMapper(testSettings())

	assert.Equal(t, 1, mapper.Zone("san francisco"))
	assert.Equal(t, 1, mapper.Zone("  SAN FRANCISCO  "))
}

func TestMapperMissingReference(t *testing.T) {
	settings := testSettings()
	settings.ReferenceCity = "Atlantis"
	mapper := NewMapper(settings)

	// Without a usable reference every location is the default zone.
	assert.Equal(t, ZoneDefault, mapper.Zone("San Francisco"))
}

func TestHaversineKm(t *testing.T) {
	sf := config.Coordinates{Lat: 37.7749, Lon: -122.4194}
	seattle := config.Coordinates{Lat: 47.6062, Lon: -122.3321}

	d := haversineKm(sf, seattle)
	// Great-circle distance SF -> Seattle is roughly 1094 km.
	assert.InDelta(t, 1094, d, 15)

	assert.InDelta(t, 0, haversineKm(sf, sf), 1e-9)
}
