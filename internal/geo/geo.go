// Package geo implements the great-circle "nearby" filter shared by the
// post and user listings.
package geo

import (
	"math"
	"sort"
)

// EarthRadiusKm is the mean Earth radius used for distances
const EarthRadiusKm = 6371.0

const (
	DefaultPostRadiusKm = 1.0
	DefaultUserRadiusKm = 5.0
)

// kmPerDegree is the great-circle length of one degree of latitude
const kmPerDegree = EarthRadiusKm * math.Pi / 180

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceKm returns the great-circle distance between two points using the
// spherical law of cosines, clamping the cosine into [-1, 1] so rounding
// never produces NaN for identical points.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := radians(lat1), radians(lat2)
	dLambda := radians(lon2 - lon1)

	c := math.Cos(phi1)*math.Cos(phi2)*math.Cos(dLambda) + math.Sin(phi1)*math.Sin(phi2)
	c = math.Max(-1, math.Min(1, c))
	return EarthRadiusKm * math.Acos(c)
}

// Point is a latitude/longitude pair in degrees
type Point struct {
	Lat, Lon float64
}

// BoundingBox is a lat/lon rectangle that contains every point within a
// radius of its center. A box with AllLongitudes set spans every meridian.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	AllLongitudes  bool
}

// Box returns a rectangle that contains the circle of radiusKm around
// (lat, lon), padded slightly. It is used as a cheap SQL prefilter before
// the exact distance check.
func Box(lat, lon, radiusKm float64) BoundingBox {
	const pad = 1.01
	dLat := radiusKm / kmPerDegree * pad

	box := BoundingBox{
		MinLat: math.Max(lat-dLat, -90),
		MaxLat: math.Min(lat+dLat, 90),
	}

	maxAbsLat := math.Max(math.Abs(box.MinLat), math.Abs(box.MaxLat))
	cosLat := math.Cos(radians(maxAbsLat))
	if maxAbsLat >= 89.9 || cosLat <= 0 {
		box.AllLongitudes = true
		return box
	}

	dLon := radiusKm / (kmPerDegree * cosLat) * pad
	box.MinLon, box.MaxLon = lon-dLon, lon+dLon
	if dLon >= 180 || box.MinLon < -180 || box.MaxLon > 180 {
		box.AllLongitudes = true
	}
	return box
}

// Hit pairs an item with its distance from the query point
type Hit[T any] struct {
	Item     T
	Distance float64
}

// Nearby returns the items whose coordinates are both set and lie strictly
// within radiusKm of (lat, lon), nearest first.
func Nearby[T any](items []T, coords func(T) (*float64, *float64), lat, lon, radiusKm float64) []Hit[T] {
	hits := make([]Hit[T], 0, len(items))
	for _, item := range items {
		iLat, iLon := coords(item)
		if iLat == nil || iLon == nil {
			continue
		}
		d := DistanceKm(lat, lon, *iLat, *iLon)
		if d < radiusKm {
			hits = append(hits, Hit[T]{Item: item, Distance: d})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	return hits
}
