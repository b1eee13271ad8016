package round

import (
	"math"

	"github.com/mapthepast/mapthepast/internal/geo"
	"github.com/mapthepast/mapthepast/internal/mapthepast"
	"github.com/mapthepast/mapthepast/internal/region"
	"github.com/mapthepast/mapthepast/internal/scoring"
)

// Scorer evaluates a guess against an event using the distance, year and
// region rules.
type Scorer struct {
	regions *region.Resolver
}

// NewScorer returns a Scorer using regions for the location bonus. A nil
// resolver disables the region bonus.
func NewScorer(regions *region.Resolver) *Scorer {
	if regions == nil {
		regions = region.New(nil)
	}
	return &Scorer{regions: regions}
}

// Evaluate fills in everything of an Attempt except the attempt number and
// timing. The error is scoring.ErrZeroEraDuration for unscorable events;
// the attempt is still usable with a zero score.
func (s *Scorer) Evaluate(ev mapthepast.Event, g Guess) (mapthepast.Attempt, error) {
	coords := *g.Coords
	year := *g.Year

	dist := geo.Between(coords, ev.Coords)
	yearDiff := ev.Year - year
	if yearDiff < 0 {
		yearDiff = -yearDiff
	}

	guessRegion, _ := s.regions.FromGuess(g.City, g.Country)
	score, err := scoring.Compute(scoring.Input{
		DistanceKm:       dist,
		YearDiff:         yearDiff,
		EraDurationYears: ev.EraDurationYears,
		GuessRegion:      guessRegion,
		ActualRegion:     ev.Region,
		GuessCountry:     g.Country,
		ActualCountry:    ev.Country,
	})

	return mapthepast.Attempt{
		Coords:     coords,
		YearGuess:  year,
		DistanceKm: math.Round(dist*10) / 10,
		YearDiff:   yearDiff,
		Score:      score,
	}, err
}
