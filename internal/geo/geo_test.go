package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/mapthepast/mapthepast/internal/mapthepast"
)

func TestDistanceKm(t *testing.T) {
	tests := []struct {
		name       string
		a, b       mapthepast.Coordinates
		wantKm     float64
		toleranceK float64
	}{
		{"same point", mapthepast.Coordinates{Lat: 48.8566, Lon: 2.3522}, mapthepast.Coordinates{Lat: 48.8566, Lon: 2.3522}, 0, 0},
		{"paris to london", mapthepast.Coordinates{Lat: 48.8566, Lon: 2.3522}, mapthepast.Coordinates{Lat: 51.5074, Lon: -0.1278}, 343.5, 2},
		{"one degree of longitude on the equator", mapthepast.Coordinates{}, mapthepast.Coordinates{Lon: 1}, 111.19, 0.1},
		{"antipodes", mapthepast.Coordinates{}, mapthepast.Coordinates{Lon: 180}, math.Pi * EarthRadiusKm, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Between(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.toleranceK {
				t.Errorf("distance = %.3f, want %.3f ± %.3f", got, tt.wantKm, tt.toleranceK)
			}
		})
	}
}

func TestDistanceKmCommutative(t *testing.T) {
	points := []mapthepast.Coordinates{
		{Lat: 0, Lon: 0},
		{Lat: -33.8688, Lon: 151.2093},
		{Lat: 41.9028, Lon: 12.4964},
		{Lat: 89.9, Lon: -179.9},
		{Lat: -12.0464, Lon: -77.0428},
	}
	for _, a := range points {
		if d := Between(a, a); d != 0 {
			t.Errorf("Between(%v, %v) = %v, want 0", a, a, d)
		}
		for _, b := range points {
			if ab, ba := Between(a, b), Between(b, a); math.Abs(ab-ba) > 1e-9 {
				t.Errorf("Between(%v, %v) = %v but reverse = %v", a, b, ab, ba)
			}
		}
	}
}

func TestParseCoords(t *testing.T) {
	tests := []struct {
		in      string
		want    mapthepast.Coordinates
		wantErr bool
	}{
		{"48.8566,2.3522", mapthepast.Coordinates{Lat: 48.8566, Lon: 2.3522}, false},
		{" -12.05 , -77.04 ", mapthepast.Coordinates{Lat: -12.05, Lon: -77.04}, false},
		{"41,12", mapthepast.Coordinates{Lat: 41, Lon: 12}, false},
		{"", mapthepast.Coordinates{}, true},
		{"paris", mapthepast.Coordinates{}, true},
		{"91,0", mapthepast.Coordinates{}, true},
		{"0,181", mapthepast.Coordinates{}, true},
		{"1,2,3", mapthepast.Coordinates{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCoords(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedCoords) {
					t.Fatalf("err = %v, want ErrMalformedCoords", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("coords = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecenterZoomTightensForCloserMisses(t *testing.T) {
	misses := []float64{10, 100, 500, 2000, 9000}
	prev := math.Inf(1)
	for _, km := range misses {
		z := RecenterZoom(km)
		if z > prev {
			t.Errorf("zoom for %v km = %v, larger than zoom %v for a closer miss", km, z, prev)
		}
		prev = z
	}
	if got := RecenterZoom(15000); got != WorldZoom {
		t.Errorf("far miss zoom = %v, want %v", got, WorldZoom)
	}
}
