// Package mapthepast defines the core domain types shared by the engine.
// It has no external dependencies.
package mapthepast

import "time"

// MaxAttempts is the number of guesses a player gets per round.
const MaxAttempts = 3

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Event is one historical occurrence the player must place and date.
// Year is negative for BCE.
type Event struct {
	ID               string      `json:"id"`
	Slug             string      `json:"slug"`
	Title            string      `json:"title"`
	Year             int         `json:"year"`
	Coords           Coordinates `json:"coords"`
	Theme            string      `json:"theme"`
	Era              string      `json:"era"`
	BroadEra         string      `json:"broadEra"`
	Region           string      `json:"region"`
	Country          string      `json:"country"`
	City             string      `json:"city"`
	NotableLocation  string      `json:"notableLocation"`
	ImageURL         string      `json:"imageUrl"`
	Caption          string      `json:"caption"`
	EraDurationYears int         `json:"eraDurationYears"`
}

// Filters narrows the catalog. An empty field matches everything.
type Filters struct {
	Theme  string `json:"theme"`
	Era    string `json:"era"`
	Region string `json:"region"`
}

// Attempt is one scored guess within a round, before acceptance.
type Attempt struct {
	Coords             Coordinates `json:"coords"`
	YearGuess          int         `json:"yearGuess"`
	DistanceKm         float64     `json:"distanceKm"`
	YearDiff           int         `json:"yearDiff"`
	Score              int         `json:"score"`
	AttemptNumber      int         `json:"attemptNumber"`
	TimeToGuessSeconds int         `json:"timeToGuessSeconds"`
	// IntegrityError is set when the score could not be computed from the
	// event data (for example a zero era duration).
	IntegrityError string `json:"integrityError,omitempty"`
}

// Result is an accepted, persisted Attempt.
type Result struct {
	ID                 string      `json:"id"`
	SessionID          string      `json:"sessionId"`
	PlayerName         string      `json:"playerName"`
	EventSlug          string      `json:"slug"`
	Title              string      `json:"title"`
	ActualYear         int         `json:"actualYear"`
	GuessYear          int         `json:"guessYear"`
	ActualCoords       Coordinates `json:"actualCoords"`
	GuessCoords        Coordinates `json:"guessCoords"`
	DistanceKm         float64     `json:"distanceKm"`
	YearDiff           int         `json:"yearDiff"`
	Score              int         `json:"score"`
	TimeToGuessSeconds int         `json:"timeToGuessSeconds"`
	AttemptNumber      int         `json:"attemptNumber"`
	NotableLocation    string      `json:"notableLocation,omitempty"`
	City               string      `json:"city,omitempty"`
	Country            string      `json:"country,omitempty"`
	Region             string      `json:"region,omitempty"`
	Theme              string      `json:"theme,omitempty"`
	Era                string      `json:"era,omitempty"`
	CreatedAt          time.Time   `json:"createdAt"`
}

type Mode string

const (
	ModeEndless Mode = "endless"
	ModeFixed   Mode = "fixed"
)

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusAbandoned SessionStatus = "abandoned"
)

// Terminal reports whether the session may no longer be mutated.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusAbandoned
}

type Session struct {
	ID           string        `json:"id"`
	PlayerName   string        `json:"playerName"`
	StartedAt    time.Time     `json:"startedAt"`
	EndedAt      *time.Time    `json:"endedAt"`
	Mode         Mode          `json:"mode"`
	TargetEvents int           `json:"targetEvents,omitempty"`
	Filters      Filters       `json:"filters"`
	TotalEvents  int           `json:"totalEvents"`
	TotalPoints  int           `json:"totalPoints"`
	AverageScore int           `json:"averageScore"`
	Completed    bool          `json:"completed"`
	Status       SessionStatus `json:"status"`
	// Theme, Era and Region describe the finished session: "all", the
	// single value every result shared, or "mixed".
	Theme  string `json:"theme,omitempty"`
	Era    string `json:"era,omitempty"`
	Region string `json:"region,omitempty"`
}

// Progress is the running aggregate pushed to the store after every
// accepted round.
type Progress struct {
	TotalEvents  int `json:"totalEvents"`
	TotalPoints  int `json:"totalPoints"`
	AverageScore int `json:"averageScore"`
}

// Summary is the finalize payload for a session.
type Summary struct {
	Progress
	EndedAt    time.Time     `json:"endedAt"`
	Completed  bool          `json:"completed"`
	Status     SessionStatus `json:"status"`
	PlayerName string        `json:"playerName"`
	Theme      string        `json:"theme,omitempty"`
	Era        string        `json:"era,omitempty"`
	Region     string        `json:"region,omitempty"`
}

// PlayerStats aggregates every result a player has recorded.
type PlayerStats struct {
	PlayerName       string  `json:"playerName"`
	TotalGames       int     `json:"totalGames"`
	TotalEvents      int     `json:"totalEvents"`
	TotalPoints      int     `json:"totalPoints"`
	AverageScore     float64 `json:"averageScore"`
	BestScore        int     `json:"bestScore"`
	TotalTime        int     `json:"totalTime"`
	AverageTime      float64 `json:"averageTime"`
	AverageDistance  float64 `json:"averageDistance"`
	AverageYearDiff  float64 `json:"averageYearDiff"`
	AverageAttempts  float64 `json:"averageAttempts"`
	NearGuesses      int     `json:"nearGuesses"`
	YearCloseGuesses int     `json:"yearCloseGuesses"`
	PerfectGuesses   int     `json:"perfectGuesses"`
}

// FilterOptions lists the distinct values each catalog filter can take.
type FilterOptions struct {
	Themes  []string `json:"themes"`
	Eras    []string `json:"eras"`
	Regions []string `json:"regions"`
}
