package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrRevokedToken = errors.New("session has been signed out")
)

// ClaimsKey is the request-context key the admin guard stores *Claims under.
const ClaimsKey = "admin_claims"

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (c *Claims) User() User {
	return User{ID: c.Subject, Email: c.Email}
}

// Tokens issues HS256 session tokens. Signed-out token ids are remembered
// until they would have expired.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewTokens(secret string, ttl time.Duration, issuer string) *Tokens {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Tokens{
		secret:  []byte(secret),
		ttl:     ttl,
		issuer:  issuer,
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}
}

func (t *Tokens) Issue(u User) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := Claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, exp, nil
}

func (t *Tokens) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, gone := t.revoked[claims.ID]; gone {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

// Revoke signs a session out.
func (t *Tokens) Revoke(c *Claims) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for id, exp := range t.revoked {
		if exp.Before(now) {
			delete(t.revoked, id)
		}
	}
	exp := now.Add(t.ttl)
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	}
	t.revoked[c.ID] = exp
}
