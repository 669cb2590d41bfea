// Package session owns one image store per client session.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ftbeamlab/internal/monitoring"
	"ftbeamlab/pkg/mixer"
)

// DefaultID names the session used by clients that send no session id. It is
// always present and never evicted.
const DefaultID = "default"

var (
	// ErrNotFound is returned for a well-formed id with no live session.
	ErrNotFound = errors.New("session: not found")

	// ErrInvalidID is returned for an id that is neither DefaultID nor a UUID.
	ErrInvalidID = errors.New("session: invalid id")
)

type entry struct {
	store    *mixer.Store
	lastUsed time.Time
}

// Registry maps session ids to their stores.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewRegistry creates a registry holding only the default session.
func NewRegistry() *Registry {
	r := &Registry{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
	r.sessions[DefaultID] = &entry{store: mixer.NewStore(), lastUsed: r.now()}
	return r
}

// Create starts a new empty session and returns its id.
func (r *Registry) Create() string {
	id := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &entry{store: mixer.NewStore(), lastUsed: r.now()}
	return id
}

func validate(id string) error {
	if id == DefaultID {
		return nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Store returns the store of session id and marks it used. The empty id
// selects the default session.
func (r *Registry) Store(id string) (*mixer.Store, error) {
	if id == "" {
		id = DefaultID
	}
	if err := validate(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.lastUsed = r.now()
	return e.store, nil
}

// Drop ends a session and releases its images. Dropping the default session
// only clears it.
func (r *Registry) Drop(id string) error {
	if err := validate(id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if id == DefaultID {
		e.store.Clear()
		return nil
	}
	delete(r.sessions, id)
	return nil
}

// EvictIdle drops every non-default session unused for longer than maxIdle
// and returns the number removed.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	n := 0
	for id, e := range r.sessions {
		if id != DefaultID && e.lastUsed.Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	if n > 0 {
		monitoring.Logf("session: evicted %d idle sessions, %d remain", n, len(r.sessions))
	}
	return n
}

// IDs returns the live session ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
