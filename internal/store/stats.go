package store

import (
	"context"

	"github.com/mapthepast/mapthepast/internal/mapthepast"
)

// Thresholds for the player summary counters.
const (
	nearGuessKm     = 50
	yearCloseYears  = 100
	perfectKm       = 10
	perfectYearDiff = 5
)

// PlayerSummary aggregates every result the player has recorded across all
// of their sessions. A player with no sessions gets zero stats.
func (s *DocStore) PlayerSummary(ctx context.Context, player string) (mapthepast.PlayerStats, error) {
	stats := mapthepast.PlayerStats{PlayerName: player}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE player_name = ?`, player,
	).Scan(&stats.TotalGames); err != nil {
		return stats, err
	}

	results, err := queryDocs[mapthepast.Result](ctx, s.db,
		`SELECT json(r.data) FROM results r
		 JOIN sessions s ON s.id = r.session_id
		 WHERE s.player_name = ?`,
		player,
	)
	if err != nil {
		return stats, err
	}
	return summarize(stats, results), nil
}

func summarize(stats mapthepast.PlayerStats, results []mapthepast.Result) mapthepast.PlayerStats {
	stats.TotalEvents = len(results)
	if stats.TotalEvents == 0 {
		return stats
	}

	var distance float64
	var yearDiff, attempts int
	for i, r := range results {
		score := max(r.Score, 0)
		stats.TotalPoints += score
		if i == 0 || score > stats.BestScore {
			stats.BestScore = score
		}
		stats.TotalTime += r.TimeToGuessSeconds
		distance += r.DistanceKm
		yd := abs(r.YearDiff)
		yearDiff += yd
		attempts += max(r.AttemptNumber, 1)

		if r.DistanceKm <= nearGuessKm {
			stats.NearGuesses++
		}
		if yd <= yearCloseYears {
			stats.YearCloseGuesses++
		}
		if r.DistanceKm <= perfectKm && yd <= perfectYearDiff {
			stats.PerfectGuesses++
		}
	}

	n := float64(stats.TotalEvents)
	stats.AverageScore = float64(stats.TotalPoints) / n
	stats.AverageTime = float64(stats.TotalTime) / n
	stats.AverageDistance = distance / n
	stats.AverageYearDiff = float64(yearDiff) / n
	stats.AverageAttempts = float64(attempts) / n
	return stats
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
