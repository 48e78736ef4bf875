package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rzadesk/rzadesk/pkg/feed"
	"github.com/rzadesk/rzadesk/pkg/rza"
)

// ErrNotFound is returned for an id the store does not hold.
var ErrNotFound = errors.New("session: not found")

// View is a point-in-time copy of one session, safe to hand to other goroutines.
type View struct {
	ID        string
	Selected  rza.Kind
	Feed      []rza.Result // newest first
	CreatedAt time.Time
	UpdatedAt time.Time
}

type entry struct {
	id        string
	feed      *feed.Feed
	createdAt time.Time
	updatedAt time.Time
}

func (e *entry) view() View {
	return View{
		ID:        e.id,
		Selected:  e.feed.Selected(),
		Feed:      e.feed.Results(),
		CreatedAt: e.createdAt,
		UpdatedAt: e.updatedAt,
	}
}

// Store is a thread-safe in-memory session store keyed by id.
// A background goroutine (Run) periodically evicts sessions that have not
// been touched within the TTL.
type Store struct {
	mu   sync.RWMutex
	data map[string]*entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Create starts a new session with an empty feed and the first tab selected.
func (s *Store) Create() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e := &entry{
		id:        uuid.NewString(),
		feed:      feed.New(),
		createdAt: now,
		updatedAt: now,
	}
	s.data[e.id] = e
	return e.view()
}

// Get returns the session with the given id. Reading does not count as
// activity for eviction. A session idle past the TTL is reported missing
// even before Evict removes it.
func (s *Store) Get(id string) (View, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.live(id)
	if !ok {
		return View{}, false
	}
	return e.view(), true
}

// live returns the entry for id unless it is absent or stale. Callers hold mu.
func (s *Store) live(id string) (*entry, bool) {
	e, ok := s.data[id]
	if !ok || !e.updatedAt.After(s.now().Add(-s.ttl)) {
		return nil, false
	}
	return e, true
}

// Calculate computes kind over in and pushes the result onto the session's
// feed. An empty kind uses the session's selected tab.
func (s *Store) Calculate(id string, kind rza.Kind, in rza.Input) (rza.Result, View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(id)
	if !ok {
		return rza.Result{}, View{}, ErrNotFound
	}
	if kind == "" {
		kind = e.feed.Selected()
	}
	res := rza.Compute(kind, in)
	e.feed.Push(res)
	e.updatedAt = s.now()
	return res, e.view(), nil
}

// Select switches the session's active tab.
func (s *Store) Select(id string, kind rza.Kind) (View, error) {
	return s.update(id, func(f *feed.Feed) { f.SelectKind(kind) })
}

// Clear empties the session's feed. The selected tab is kept.
func (s *Store) Clear(id string) (View, error) {
	return s.update(id, (*feed.Feed).Clear)
}

func (s *Store) update(id string, fn func(*feed.Feed)) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(id)
	if !ok {
		return View{}, ErrNotFound
	}
	fn(e.feed)
	e.updatedAt = s.now()
	return e.view(), nil
}

// Delete ends a session. It reports whether the session existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return false
	}
	delete(s.data, id)
	return true
}

// List returns all sessions touched within the TTL, oldest first.
// Stale sessions that have not yet been evicted are excluded.
func (s *Store) List() []View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]View, 0, len(s.data))
	for id := range s.data {
		if e, ok := s.live(id); ok {
			out = append(out, e.view())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of sessions currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// TTL returns the current idle lifetime.
func (s *Store) TTL() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ttl
}

// SetTTL changes the idle lifetime. Non-positive values are ignored.
func (s *Store) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttl = ttl
}

// Evict removes sessions whose last activity is older than now minus TTL.
// It returns the ids removed.
func (s *Store) Evict(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	var removed []string
	for id, e := range s.data {
		if !e.updatedAt.After(cutoff) {
			delete(s.data, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Run starts the background eviction loop. It ticks at half the TTL
// (minimum 1 second) and follows TTL changes made with SetTTL. onEvict, if
// non-nil, is called with the ids removed on each tick. Run blocks until ctx
// is cancelled.
func (s *Store) Run(ctx context.Context, onEvict func(ids []string)) {
	interval := evictInterval(s.TTL())
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if ids := s.Evict(now); len(ids) > 0 {
				slog.Debug("session: evicted idle sessions", "count", len(ids))
				if onEvict != nil {
					onEvict(ids)
				}
			}
			if next := evictInterval(s.TTL()); next != interval {
				interval = next
				t.Reset(interval)
			}
		}
	}
}

func evictInterval(ttl time.Duration) time.Duration {
	if d := ttl / 2; d >= time.Second {
		return d
	}
	return time.Second
}
