package server

import (
	"encoding/json"
	"sync"

	"github.com/mapthepast/mapthepast/internal/game"
)

// Broker fans game.Event values out to the live viewers of a session: the
// SSE stream and the websocket feed both subscribe here. Each message is a
// JSON object {"type", "sessionId", "data"} where data is the RoundView,
// SubmitView, Recenter hint, AcceptView or Summary matching the type, or
// the failed operation name for store_error.
// Events for sessions nobody watches are discarded.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe registers a viewer of sessionID. The channel buffers 16
// encoded events; callers must Unsubscribe when the viewer goes away.
func (b *Broker) Subscribe(sessionID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan []byte]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe drops a viewer and forgets the session once it has none.
func (b *Broker) Unsubscribe(sessionID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[sessionID], ch)
	if len(b.subs[sessionID]) == 0 {
		delete(b.subs, sessionID)
	}
	b.mu.Unlock()
}

// Publish implements game.Publisher. It never blocks the engine: a viewer
// whose buffer is full misses the event and picks up state from the next
// round snapshot.
func (b *Broker) Publish(sessionID string, event game.Event) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for ch := range b.subs[sessionID] {
		select {
		case ch <- data:
		default:
		}
	}
	b.mu.RUnlock()
}
