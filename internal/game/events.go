package game

// Event types published for a session.
const (
	EventRoundStarted     = "round_started"
	EventAttemptScored    = "attempt_scored"
	EventRoundRetry       = "round_retry"
	EventResultAccepted   = "result_accepted"
	EventSessionFinalized = "session_finalized"
	EventStoreError       = "store_error"
)

// Event is a notification about a session, fanned out to live subscribers.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Data      any    `json:"data,omitempty"`
}

// Publisher delivers session events. Publish must not block.
type Publisher interface {
	Publish(sessionID string, ev Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, Event) {}
