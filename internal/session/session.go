// Package session folds accepted round results into session totals and
// builds the finalize payload.
package session

import (
	"errors"
	"math"
	"time"

	"github.com/mapthepast/mapthepast/internal/mapthepast"
)

const (
	FilterAll   = "all"
	FilterMixed = "mixed"
)

// ErrAlreadyFinalized is returned when finalizing a session that is already
// completed or abandoned.
var ErrAlreadyFinalized = errors.New("session already finalized")

// Aggregator holds the accepted results of one session, in order.
type Aggregator struct {
	results []mapthepast.Result
}

func NewAggregator(results ...mapthepast.Result) *Aggregator {
	return &Aggregator{results: append([]mapthepast.Result(nil), results...)}
}

// Add records an accepted result.
func (a *Aggregator) Add(r mapthepast.Result) {
	a.results = append(a.results, r)
}

// Results returns a copy of the accepted results.
func (a *Aggregator) Results() []mapthepast.Result {
	return append([]mapthepast.Result(nil), a.results...)
}

// PlayedSlugs returns the distinct slugs accepted so far, in first-played
// order.
func (a *Aggregator) PlayedSlugs() []string {
	seen := make(map[string]bool, len(a.results))
	var out []string
	for _, r := range a.results {
		if !seen[r.EventSlug] {
			seen[r.EventSlug] = true
			out = append(out, r.EventSlug)
		}
	}
	return out
}

// BestScorePerSlug keeps the highest score for each event slug.
func (a *Aggregator) BestScorePerSlug() map[string]int {
	return BestScorePerSlug(a.results)
}

// Totals computes the running aggregate over the best score per slug.
func (a *Aggregator) Totals() mapthepast.Progress {
	return Totals(a.BestScorePerSlug())
}

// BestScorePerSlug keeps the highest score for each event slug. Negative
// scores count as zero.
func BestScorePerSlug(results []mapthepast.Result) map[string]int {
	best := make(map[string]int, len(results))
	for _, r := range results {
		score := max(r.Score, 0)
		if cur, ok := best[r.EventSlug]; !ok || score > cur {
			best[r.EventSlug] = score
		}
	}
	return best
}

// Totals counts distinct slugs and sums their best scores. The average is
// rounded to the nearest point.
func Totals(best map[string]int) mapthepast.Progress {
	var p mapthepast.Progress
	p.TotalEvents = len(best)
	for _, s := range best {
		p.TotalPoints += s
	}
	if p.TotalEvents > 0 {
		p.AverageScore = int(math.Round(float64(p.TotalPoints) / float64(p.TotalEvents)))
	}
	return p
}

// SummarizeFilter describes one filter dimension of a finished session:
// "all" when no value was selected, the single value every result shared,
// or "mixed".
func SummarizeFilter(values []string, selected string) string {
	if selected == "" {
		return FilterAll
	}
	seen := make(map[string]bool)
	var only string
	for _, v := range values {
		if v != "" && !seen[v] {
			seen[v] = true
			only = v
		}
	}
	if len(seen) == 1 {
		return only
	}
	return FilterMixed
}

// Finalize builds the closing summary for sess. A session without results
// is abandoned; otherwise it is completed with totals and filter summaries.
// playerName overrides the session's name when set.
func (a *Aggregator) Finalize(sess mapthepast.Session, playerName string, now time.Time) (mapthepast.Summary, error) {
	if sess.Status.Terminal() {
		return mapthepast.Summary{}, ErrAlreadyFinalized
	}
	if playerName == "" {
		playerName = sess.PlayerName
	}
	if playerName == "" {
		playerName = "Anonymous"
	}

	if len(a.results) == 0 {
		return mapthepast.Summary{
			EndedAt:    now,
			Completed:  false,
			Status:     mapthepast.SessionStatusAbandoned,
			PlayerName: playerName,
		}, nil
	}

	themes := make([]string, len(a.results))
	eras := make([]string, len(a.results))
	regions := make([]string, len(a.results))
	for i, r := range a.results {
		themes[i], eras[i], regions[i] = r.Theme, r.Era, r.Region
	}

	return mapthepast.Summary{
		Progress:   a.Totals(),
		EndedAt:    now,
		Completed:  true,
		Status:     mapthepast.SessionStatusCompleted,
		PlayerName: playerName,
		Theme:      SummarizeFilter(themes, sess.Filters.Theme),
		Era:        SummarizeFilter(eras, sess.Filters.Era),
		Region:     SummarizeFilter(regions, sess.Filters.Region),
	}, nil
}

// Apply copies a summary onto the session it was built for.
func Apply(sess *mapthepast.Session, sum mapthepast.Summary) {
	ended := sum.EndedAt
	sess.EndedAt = &ended
	sess.TotalEvents = sum.TotalEvents
	sess.TotalPoints = sum.TotalPoints
	sess.AverageScore = sum.AverageScore
	sess.Completed = sum.Completed
	sess.Status = sum.Status
	sess.PlayerName = sum.PlayerName
	sess.Theme = sum.Theme
	sess.Era = sum.Era
	sess.Region = sum.Region
}
