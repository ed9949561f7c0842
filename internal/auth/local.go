package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Local checks credentials against configured bcrypt hashes and throttles
// repeated failures per email.
type Local struct {
	hashes map[string][]byte

	mu       sync.Mutex
	failures map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewLocal(admins map[string]string, limit int, window time.Duration) *Local {
	hashes := make(map[string][]byte, len(admins))
	for email, hash := range admins {
		hashes[strings.ToLower(strings.TrimSpace(email))] = []byte(hash)
	}
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Local{
		hashes:   hashes,
		failures: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (l *Local) SignIn(_ context.Context, email, password string) (User, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if l.throttled(key) {
		return User{}, &Error{Code: CodeTooManyRequests}
	}

	hash, ok := l.hashes[key]
	if !ok {
		l.fail(key)
		return User{}, &Error{Code: CodeUserNotFound}
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		l.fail(key)
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return User{}, &Error{Code: CodeWrongPassword}
		}
		return User{}, &Error{Code: CodeInvalidCredential, Err: err}
	}

	l.mu.Lock()
	delete(l.failures, key)
	l.mu.Unlock()
	return User{ID: key, Email: key}, nil
}

func (l *Local) recent(key string) []time.Time {
	cutoff := l.now().Add(-l.window)
	kept := l.failures[key][:0]
	for _, t := range l.failures[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.failures[key] = kept
	return kept
}

func (l *Local) throttled(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.recent(key)) >= l.limit
}

func (l *Local) fail(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[key] = append(l.recent(key), l.now())
}

// HashPassword is used to produce the hashes placed in config.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}
