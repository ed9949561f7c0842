package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("registration session not found")
	ErrBusy            = errors.New("registration session has a step in progress")
)

type entry struct {
	session Session
	busy    bool
}

// Sessions keeps wizard state in memory. A session is never reset; starting
// over means starting a new session.
type Sessions struct {
	mu    sync.Mutex
	items map[string]*entry
	ttl   time.Duration
	now   func() time.Time
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		items: make(map[string]*entry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *Sessions) Create() Session {
	now := s.now()
	sess := Session{
		ID:        uuid.NewString(),
		Step:      StepForm,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.items[sess.ID] = &entry{session: sess}
	s.mu.Unlock()
	return sess
}

func (s *Sessions) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return e.session, nil
}

// begin claims the session for a step whose side effect runs outside the
// lock. It fails if the session is not at want or another step is running.
func (s *Sessions) begin(id string, want Step) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if e.busy {
		return Session{}, ErrBusy
	}
	if e.session.Step != want {
		return Session{}, fmt.Errorf("%w: session is at %s, not %s", ErrInvalidTransition, e.session.Step, want)
	}
	e.busy = true
	return e.session, nil
}

// finish releases a claim. When apply is non-nil it runs on the stored
// session under the lock.
func (s *Sessions) finish(id string, apply func(*Session, time.Time) error) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	e.busy = false
	if apply == nil {
		return e.session, nil
	}
	if err := apply(&e.session, s.now()); err != nil {
		return e.session, err
	}
	return e.session, nil
}

// Purge drops sessions idle for longer than the ttl and returns how many
// were removed.
func (s *Sessions) Purge() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.items {
		if !e.busy && e.session.UpdatedAt.Before(cutoff) {
			delete(s.items, id)
			n++
		}
	}
	return n
}

// RunJanitor purges on every tick until ctx is done.
func (s *Sessions) RunJanitor(ctx context.Context, every time.Duration, onPurge func(int)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Purge(); n > 0 && onPurge != nil {
				onPurge(n)
			}
		}
	}
}
