package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mapthepast/mapthepast/internal/mapthepast"
	"github.com/mapthepast/mapthepast/internal/region"
)

func TestNominatim(t *testing.T) {
	var gotUA, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query().Get("q")
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		switch gotQuery {
		case "Cusco":
			w.Write([]byte(`[{"lat":"-13.5319","lon":"-71.9675","display_name":"Cusco, Peru"}]`))
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	n := NewNominatim(srv.URL+"/", "mapthepast-test")

	c, err := n.ResolvePlace(context.Background(), "Cusco")
	if err != nil {
		t.Fatalf("ResolvePlace: %v", err)
	}
	if c.Lat != -13.5319 || c.Lon != -71.9675 {
		t.Errorf("coords = %+v", c)
	}
	if gotUA != "mapthepast-test" {
		t.Errorf("User-Agent = %q", gotUA)
	}

	tests := []struct {
		name string
		q    string
		want error
	}{
		{"no results", "Atlantis", ErrPlaceNotFound},
		{"server error", "broken", ErrUnavailable},
		{"blank", "   ", ErrPlaceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.ResolvePlace(context.Background(), tt.q)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNominatimUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewNominatim(url, "ua").ResolvePlace(context.Background(), "Lima")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

type countingGeocoder struct {
	calls int
}

func (c *countingGeocoder) ResolvePlace(context.Context, string) (mapthepast.Coordinates, error) {
	c.calls++
	return mapthepast.Coordinates{Lat: 1, Lon: 2}, nil
}

func TestFallback(t *testing.T) {
	regions := region.New([]region.Entry{
		{City: "Rome", Country: "Italy", Region: "Europe", Lat: 41.9, Lon: 12.5},
	})

	tests := []struct {
		name        string
		text        string
		want        mapthepast.Coordinates
		remoteCalls int
	}{
		{"literal coords", "10.5, -20.25", mapthepast.Coordinates{Lat: 10.5, Lon: -20.25}, 0},
		{"city and country", "rome, Italy", mapthepast.Coordinates{Lat: 41.9, Lon: 12.5}, 0},
		{"bare city", "Rome", mapthepast.Coordinates{Lat: 41.9, Lon: 12.5}, 0},
		{"country only goes remote", "Italy", mapthepast.Coordinates{Lat: 1, Lon: 2}, 1},
		{"unknown goes remote", "Milan, Italy", mapthepast.Coordinates{Lat: 1, Lon: 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &countingGeocoder{}
			got, err := NewFallback(regions, remote).ResolvePlace(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("ResolvePlace: %v", err)
			}
			if got != tt.want {
				t.Errorf("coords = %+v, want %+v", got, tt.want)
			}
			if remote.calls != tt.remoteCalls {
				t.Errorf("remote calls = %d, want %d", remote.calls, tt.remoteCalls)
			}
		})
	}

	if _, err := NewFallback(regions, nil).ResolvePlace(context.Background(), "Atlantis"); !errors.Is(err, ErrPlaceNotFound) {
		t.Errorf("no remote: error = %v, want ErrPlaceNotFound", err)
	}
}
