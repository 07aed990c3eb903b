package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type place struct {
	name     string
	lat, lon *float64
}

func f(v float64) *float64 { return &v }

func placeCoords(p place) (*float64, *float64) { return p.lat, p.lon }

func TestDistanceKm(t *testing.T) {
	assert.Equal(t, 0.0, DistanceKm(37.8719, -122.2585, 37.8719, -122.2585))
	// one degree of latitude
	assert.InDelta(t, 111.19, DistanceKm(0, 0, 1, 0), 0.01)
	// Berkeley to San Francisco, roughly 16 km
	assert.InDelta(t, 16, DistanceKm(37.8719, -122.2585, 37.7749, -122.4194), 2)
}

func TestNearbyFiltersAndSorts(t *testing.T) {
	places := []place{
		{"far", f(1), f(1)},
		{"near", f(0.001), f(0.001)},
		{"nowhere", nil, nil},
		{"half", f(0.5), nil},
		{"origin", f(0), f(0)},
	}

	hits := Nearby(places, placeCoords, 0, 0, 1)
	require.Len(t, hits, 2)
	assert.Equal(t, "origin", hits[0].Item.name)
	assert.Equal(t, "near", hits[1].Item.name)
	assert.Less(t, hits[0].Distance, hits[1].Distance)
}

func TestNearbyIsStrict(t *testing.T) {
	d := DistanceKm(0, 0, 0.01, 0.01)
	places := []place{{"edge", f(0.01), f(0.01)}}

	assert.Empty(t, Nearby(places, placeCoords, 0, 0, d))
	assert.Len(t, Nearby(places, placeCoords, 0, 0, d+0.001), 1)
}

func TestBoxContainsCircle(t *testing.T) {
	box := Box(37.87, -122.26, 5)
	require.False(t, box.AllLongitudes)

	// points on the circle's cardinal edges must fall inside the box
	dLat := 5 / kmPerDegree
	assert.LessOrEqual(t, box.MinLat, 37.87-dLat)
	assert.GreaterOrEqual(t, box.MaxLat, 37.87+dLat)
	assert.Less(t, box.MinLon, -122.26)
	assert.Greater(t, box.MaxLon, -122.26)
	assert.Less(t, DistanceKm(37.87, -122.26, 37.87, box.MaxLon), 5.2)
	assert.Greater(t, DistanceKm(37.87, -122.26, 37.87, box.MaxLon), 5.0)
}

func TestBoxNearPoleAndAntimeridian(t *testing.T) {
	assert.True(t, Box(89.95, 0, 50).AllLongitudes)
	assert.True(t, Box(0, 179.99, 10).AllLongitudes)
}
