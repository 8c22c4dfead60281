package pagination

import (
	"context"
	"sync"

	"github.com/Aygren/balendip-sub000/internal/domain/model"
)

// Session accumulates pages for one view into a single ordered sequence.
//
// Every filter change bumps the generation. A LoadMore whose generation no
// longer matches when its response arrives is dropped with ErrStaleSession.
type Session struct {
	engine *Engine
	size   int

	mu      sync.Mutex
	filter  model.EventFilter
	gen     uint64
	events  []model.Event
	seen    map[string]struct{}
	next    string
	started bool
}

// NewSession starts an empty session under filter.
func (e *Engine) NewSession(filter model.EventFilter, size int) *Session {
	s := &Session{engine: e, size: e.PageSize(size)}
	s.reset(filter.Normalize())
	return s
}

func (s *Session) reset(filter model.EventFilter) {
	s.filter = filter
	s.gen++
	s.events = nil
	s.seen = make(map[string]struct{})
	s.next = ""
	s.started = false
}

// SetFilter restarts the session from the first page when filter differs
// from the current one. It reports whether a restart happened.
func (s *Session) SetFilter(filter model.EventFilter) bool {
	filter = filter.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	if filter.Fingerprint() == s.filter.Fingerprint() {
		return false
	}
	s.reset(filter)
	return true
}

// Reset restarts the session under the same filter.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(s.filter)
}

// LoadMore fetches the next page and appends the records not already held.
// It returns the number of records appended.
func (s *Session) LoadMore(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.started && s.next == "" {
		s.mu.Unlock()
		return 0, nil
	}
	gen, filter, token := s.gen, s.filter, s.next
	s.mu.Unlock()

	page, err := s.engine.LoadPage(ctx, filter, token, s.size)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return 0, ErrStaleSession
	}
	if err != nil {
		return 0, err
	}
	added := 0
	for _, ev := range page.Events {
		if _, dup := s.seen[ev.ID]; dup {
			continue
		}
		s.seen[ev.ID] = struct{}{}
		s.events = append(s.events, ev)
		added++
	}
	s.next = page.Next
	s.started = true
	return added, nil
}

// Events returns a copy of the accumulated records.
func (s *Session) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out
}

// HasMore reports whether another page may exist.
func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.started || s.next != ""
}

// Generation returns the current generation number.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}
