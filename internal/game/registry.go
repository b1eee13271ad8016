package game

import (
	"sync"
	"time"

	"github.com/mapthepast/mapthepast/internal/mapthepast"
	"github.com/mapthepast/mapthepast/internal/round"
	"github.com/mapthepast/mapthepast/internal/session"
)

// Handle is the live state of one session. All fields are guarded by mu;
// engine operations on the same session are serialized through it.
type Handle struct {
	mu sync.Mutex

	sess      mapthepast.Session
	agg       *session.Aggregator
	round     *round.Machine
	repeats   bool
	finalized bool
	summary   mapthepast.Summary
	lastSeen  time.Time
}

// ID returns the session ID.
func (h *Handle) ID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sess.ID
}

// Session returns a copy of the session record.
func (h *Handle) Session() mapthepast.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sess
}

// Registry holds the live handles, keyed by session ID.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

func (r *Registry) Get(id string) (*Handle, bool) {
	r.mu.RLock()
	h, ok := r.handles[id]
	r.mu.RUnlock()
	return h, ok
}

func (r *Registry) Put(id string, h *Handle) {
	r.mu.Lock()
	r.handles[id] = h
	r.mu.Unlock()
}

// Remove drops and returns the handle for id.
func (r *Registry) Remove(id string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	if ok {
		delete(r.handles, id)
	}
	return h, ok
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// idle returns the IDs of handles not touched since cutoff.
func (r *Registry) idle(cutoff time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, h := range r.handles {
		h.mu.Lock()
		stale := h.lastSeen.Before(cutoff)
		h.mu.Unlock()
		if stale {
			ids = append(ids, id)
		}
	}
	return ids
}
