// Package geo holds the great-circle math used to score location guesses.
package geo

import (
	"errors"
	"math"
	"regexp"
	"strconv"

	"github.com/mapthepast/mapthepast/internal/mapthepast"
)

// EarthRadiusKm is the mean Earth radius used by DistanceKm.
const EarthRadiusKm = 6371.0

// ErrMalformedCoords is returned by ParseCoords for text that is not a
// "lat,lon" pair within range.
var ErrMalformedCoords = errors.New("malformed coordinates")

var reLatLon = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*$`)

// DistanceKm is the haversine distance in kilometres between two WGS84
// points given in degrees.
func DistanceKm(latA, lonA, latB, lonB float64) float64 {
	φ1 := latA * math.Pi / 180.0
	φ2 := latB * math.Pi / 180.0
	dφ := (latB - latA) * math.Pi / 180.0
	dλ := (lonB - lonA) * math.Pi / 180.0

	sinDφ := math.Sin(dφ / 2)
	sinDλ := math.Sin(dλ / 2)

	a := sinDφ*sinDφ + math.Cos(φ1)*math.Cos(φ2)*sinDλ*sinDλ
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Between is DistanceKm for two coordinate values.
func Between(a, b mapthepast.Coordinates) float64 {
	return DistanceKm(a.Lat, a.Lon, b.Lat, b.Lon)
}

// ParseCoords parses the catalog's "lat,lon" text form. On failure it
// returns the neutral (0,0) point together with ErrMalformedCoords so the
// caller can log and keep going.
func ParseCoords(s string) (mapthepast.Coordinates, error) {
	m := reLatLon.FindStringSubmatch(s)
	if len(m) != 3 {
		return mapthepast.Coordinates{}, ErrMalformedCoords
	}
	lat, err1 := strconv.ParseFloat(m[1], 64)
	lon, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return mapthepast.Coordinates{}, ErrMalformedCoords
	}
	c := mapthepast.Coordinates{Lat: lat, Lon: lon}
	if !Valid(c) {
		return mapthepast.Coordinates{}, ErrMalformedCoords
	}
	return c, nil
}

// Valid reports whether c is a finite point within latitude/longitude range.
func Valid(c mapthepast.Coordinates) bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// WorldZoom is the map widget's fully zoomed-out level.
const WorldZoom = 2.0

// RecenterZoom picks the map zoom to recenter on after a miss of missKm.
// Closer misses get a tighter view.
func RecenterZoom(missKm float64) float64 {
	switch {
	case missKm < 50:
		return 8
	case missKm < 250:
		return 6
	case missKm < 1000:
		return 4
	case missKm < 3000:
		return 3
	default:
		return WorldZoom
	}
}
