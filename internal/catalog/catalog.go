// Package catalog reads event catalog files (JSON or YAML) into domain
// events ready for the store.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mapthepast/mapthepast/internal/geo"
	"github.com/mapthepast/mapthepast/internal/mapthepast"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// record is one catalog entry as written by the content pipeline. coords
// may be "lat,lon" text, a "[lat, lon]" string or a two-element list;
// lat/lon fields are used when coords is absent.
type record struct {
	Slug            string   `json:"slug" yaml:"slug"`
	Title           string   `json:"title" yaml:"title"`
	Year            int      `json:"year" yaml:"year"`
	Coords          any      `json:"coords" yaml:"coords"`
	Lat             *float64 `json:"lat" yaml:"lat"`
	Lon             *float64 `json:"lon" yaml:"lon"`
	Theme           string   `json:"theme" yaml:"theme"`
	Era             string   `json:"era" yaml:"era"`
	BroadEra        string   `json:"broad_era" yaml:"broad_era"`
	Region          string   `json:"region" yaml:"region"`
	Country         string   `json:"country" yaml:"country"`
	City            string   `json:"city" yaml:"city"`
	NotableLocation string   `json:"notable_location" yaml:"notable_location"`
	ImageURL        string   `json:"image_url" yaml:"image_url"`
	Caption         string   `json:"caption" yaml:"caption"`
	EraDuration     int      `json:"era_duration" yaml:"era_duration"`
}

// Report describes what Parse made of a file.
type Report struct {
	Events []mapthepast.Event
	// Warnings lists records that were imported with a repair (bad coords,
	// derived slug).
	Warnings []string
	// ZeroEra lists slugs whose era duration is not positive. They are
	// imported but score 0 until fixed.
	ZeroEra []string
	// Skipped counts records with neither slug nor title.
	Skipped int
}

// FormatFor picks the decoder from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported catalog format %q", filepath.Ext(path))
	}
}

// Load reads and parses the catalog file at path.
func Load(path string) (Report, error) {
	format, err := FormatFor(path)
	if err != nil {
		return Report{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data, format)
}

// Parse decodes a list of catalog records.
func Parse(data []byte, format Format) (Report, error) {
	var records []record
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &records); err != nil {
			return Report{}, fmt.Errorf("parsing catalog: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &records); err != nil {
			return Report{}, fmt.Errorf("parsing catalog: %w", err)
		}
	default:
		return Report{}, fmt.Errorf("unsupported catalog format %q", format)
	}

	var rep Report
	seen := make(map[string]bool, len(records))
	for i, r := range records {
		slug := r.Slug
		if slug == "" {
			slug = Slugify(r.Title)
			if slug == "" {
				rep.Skipped++
				continue
			}
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("record %d: slug derived from title: %s", i, slug))
		}
		if seen[slug] {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("record %d: duplicate slug %s, later entry wins", i, slug))
		}
		seen[slug] = true

		coords, err := r.coords()
		if err != nil {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s: %v, using 0,0", slug, err))
		}
		if r.EraDuration <= 0 {
			rep.ZeroEra = append(rep.ZeroEra, slug)
		}

		rep.Events = append(rep.Events, mapthepast.Event{
			Slug:             slug,
			Title:            r.Title,
			Year:             r.Year,
			Coords:           coords,
			Theme:            r.Theme,
			Era:              r.Era,
			BroadEra:         r.BroadEra,
			Region:           r.Region,
			Country:          r.Country,
			City:             r.City,
			NotableLocation:  r.NotableLocation,
			ImageURL:         r.ImageURL,
			Caption:          r.Caption,
			EraDurationYears: r.EraDuration,
		})
	}
	return rep, nil
}

func (r record) coords() (mapthepast.Coordinates, error) {
	switch v := r.Coords.(type) {
	case nil:
		if r.Lat == nil || r.Lon == nil {
			return mapthepast.Coordinates{}, geo.ErrMalformedCoords
		}
		c := mapthepast.Coordinates{Lat: *r.Lat, Lon: *r.Lon}
		if !geo.Valid(c) {
			return mapthepast.Coordinates{}, geo.ErrMalformedCoords
		}
		return c, nil
	case string:
		s := strings.TrimSpace(v)
		s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		return geo.ParseCoords(s)
	case []any:
		if len(v) != 2 {
			return mapthepast.Coordinates{}, geo.ErrMalformedCoords
		}
		lat, ok1 := number(v[0])
		lon, ok2 := number(v[1])
		c := mapthepast.Coordinates{Lat: lat, Lon: lon}
		if !ok1 || !ok2 || !geo.Valid(c) {
			return mapthepast.Coordinates{}, geo.ErrMalformedCoords
		}
		return c, nil
	default:
		return mapthepast.Coordinates{}, geo.ErrMalformedCoords
	}
}

// number accepts the numeric shapes both decoders produce.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases title and joins its words with dashes.
func Slugify(title string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
}

// Upserter stores parsed events.
type Upserter interface {
	UpsertEvents(ctx context.Context, events []mapthepast.Event) error
}

// Import loads the file at path and upserts its events.
func Import(ctx context.Context, dst Upserter, path string) (Report, error) {
	rep, err := Load(path)
	if err != nil {
		return rep, err
	}
	if len(rep.Events) == 0 {
		return rep, nil
	}
	if err := dst.UpsertEvents(ctx, rep.Events); err != nil {
		return rep, fmt.Errorf("importing catalog: %w", err)
	}
	return rep, nil
}
