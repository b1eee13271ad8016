// Package region maps free-text city/country guesses to the coarse region
// labels used by the scoring bonus.
package region

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mapthepast/mapthepast/internal/mapthepast"
)

//go:embed city_lookup.json
var defaultTable []byte

// Entry is one row of the lookup table.
type Entry struct {
	City    string  `json:"city"`
	Country string  `json:"country"`
	Region  string  `json:"region"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Resolver looks guesses up in a static table. The zero value matches
// nothing.
type Resolver struct {
	entries []Entry
}

// New builds a Resolver over entries. Lookups are first-match-wins in the
// given order.
func New(entries []Entry) *Resolver {
	return &Resolver{entries: entries}
}

// Default returns a Resolver over the embedded city table.
func Default() (*Resolver, error) {
	var entries []Entry
	if err := json.Unmarshal(defaultTable, &entries); err != nil {
		return nil, fmt.Errorf("decoding city lookup table: %w", err)
	}
	return New(entries), nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Lookup returns the table entry for a guess: an exact city+country match
// when a city is given, otherwise the first entry for the country.
func (r *Resolver) Lookup(city, country string) (Entry, bool) {
	city, country = normalize(city), normalize(country)
	if city == "" && country == "" {
		return Entry{}, false
	}

	if city != "" {
		for _, e := range r.entries {
			if normalize(e.City) == city && normalize(e.Country) == country {
				return e, true
			}
		}
	}

	if country == "" {
		return Entry{}, false
	}
	for _, e := range r.entries {
		if normalize(e.Country) == country {
			return e, true
		}
	}
	return Entry{}, false
}

// FromGuess returns the region for a city/country guess, or false when the
// guess is empty or unknown (no bonus).
func (r *Resolver) FromGuess(city, country string) (string, bool) {
	e, ok := r.Lookup(city, country)
	if !ok {
		return "", false
	}
	return e.Region, true
}

// Coords returns the entry's position.
func (e Entry) Coords() mapthepast.Coordinates {
	return mapthepast.Coordinates{Lat: e.Lat, Lon: e.Lon}
}

// FindCity returns the first entry whose city matches name, in any country.
func (r *Resolver) FindCity(name string) (Entry, bool) {
	name = normalize(name)
	if name == "" {
		return Entry{}, false
	}
	for _, e := range r.entries {
		if normalize(e.City) == name {
			return e, true
		}
	}
	return Entry{}, false
}
