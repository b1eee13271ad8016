// Package scoring turns a guess's distance and year error into points.
package scoring

import (
	"errors"
	"math"
	"strings"
)

const (
	BaseScore      = 2000
	MaxYearPenalty = 500
	PrecisionBonus = 100
	CountryBonus   = 200
	RegionBonus    = 100

	// MaxScore is the best possible result: a perfect guess with the
	// precision and country bonuses.
	MaxScore = BaseScore + PrecisionBonus + CountryBonus

	// distancePenaltyPerKm is subtracted for every kilometre of error.
	distancePenaltyPerKm = 2.0
	// precisionYears is the largest year error that still earns the
	// precision bonus.
	precisionYears = 5
)

// ErrZeroEraDuration marks event data that cannot be scored. It is a data
// problem, not a low score.
var ErrZeroEraDuration = errors.New("era duration is zero")

// Input is everything Compute needs about one guess.
type Input struct {
	DistanceKm       float64
	YearDiff         int
	EraDurationYears int
	GuessRegion      string
	ActualRegion     string
	GuessCountry     string
	ActualCountry    string
}

// Compute returns the score for in, in [0, MaxScore].
//
// The year penalty scales with the era's length and is capped so that year
// error alone never zeroes a guess. The distance penalty is uncapped. A
// country match and a region match are mutually exclusive; the country
// bonus wins.
func Compute(in Input) (int, error) {
	if in.EraDurationYears == 0 {
		return 0, ErrZeroEraDuration
	}

	yearDiff := in.YearDiff
	if yearDiff < 0 {
		yearDiff = -yearDiff
	}
	era := math.Abs(float64(in.EraDurationYears))

	score := float64(BaseScore)
	score -= distancePenaltyPerKm * in.DistanceKm
	score -= math.Min(float64(yearDiff)/era*1000, MaxYearPenalty)

	if yearDiff <= precisionYears {
		score += PrecisionBonus
	}

	switch {
	case matchFold(in.GuessCountry, in.ActualCountry):
		score += CountryBonus
	case in.GuessRegion != "" && in.GuessRegion == in.ActualRegion:
		score += RegionBonus
	}

	return int(math.Max(0, math.Round(score))), nil
}

func matchFold(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
