// Package geocode resolves free-text place names to coordinates.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mapthepast/mapthepast/internal/geo"
	"github.com/mapthepast/mapthepast/internal/mapthepast"
	"github.com/mapthepast/mapthepast/internal/region"
)

var (
	ErrPlaceNotFound = errors.New("place not found")
	ErrUnavailable   = errors.New("geocoder unavailable")
)

// Geocoder turns a place name into coordinates.
type Geocoder interface {
	ResolvePlace(ctx context.Context, text string) (mapthepast.Coordinates, error)
}

// Nominatim queries a Nominatim-compatible search endpoint.
type Nominatim struct {
	base      string
	userAgent string
	client    *http.Client
}

func NewNominatim(base, userAgent string) *Nominatim {
	return &Nominatim{
		base:      strings.TrimRight(base, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (n *Nominatim) ResolvePlace(ctx context.Context, text string) (mapthepast.Coordinates, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return mapthepast.Coordinates{}, ErrPlaceNotFound
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("q", text)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.base+"/search?"+q.Encode(), nil)
	if err != nil {
		return mapthepast.Coordinates{}, err
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return mapthepast.Coordinates{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mapthepast.Coordinates{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return mapthepast.Coordinates{}, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	if len(places) == 0 {
		return mapthepast.Coordinates{}, ErrPlaceNotFound
	}

	lat, err1 := strconv.ParseFloat(places[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(places[0].Lon, 64)
	c := mapthepast.Coordinates{Lat: lat, Lon: lon}
	if err1 != nil || err2 != nil || !geo.Valid(c) {
		return mapthepast.Coordinates{}, fmt.Errorf("%w: bad coordinates %q,%q", ErrUnavailable, places[0].Lat, places[0].Lon)
	}
	return c, nil
}

// Fallback answers from literal "lat,lon" text and the offline city table
// before asking remote. remote may be nil.
type Fallback struct {
	regions *region.Resolver
	remote  Geocoder
}

func NewFallback(regions *region.Resolver, remote Geocoder) *Fallback {
	return &Fallback{regions: regions, remote: remote}
}

func (f *Fallback) ResolvePlace(ctx context.Context, text string) (mapthepast.Coordinates, error) {
	if c, err := geo.ParseCoords(text); err == nil {
		return c, nil
	}
	if f.regions != nil {
		if e, ok := f.lookup(text); ok {
			return e.Coords(), nil
		}
	}
	if f.remote == nil {
		return mapthepast.Coordinates{}, ErrPlaceNotFound
	}
	return f.remote.ResolvePlace(ctx, text)
}

// lookup reads "city, country" or a bare city name. Country-only matches
// are skipped since a country is too coarse to place a guess.
func (f *Fallback) lookup(text string) (region.Entry, bool) {
	parts := strings.Split(text, ",")
	if len(parts) == 1 {
		return f.regions.FindCity(parts[0])
	}
	city := strings.TrimSpace(parts[0])
	country := strings.TrimSpace(parts[len(parts)-1])
	e, ok := f.regions.Lookup(city, country)
	if !ok || !strings.EqualFold(e.City, city) {
		return region.Entry{}, false
	}
	return e, true
}
