// Package session issues bearer tokens for shopping sessions and owns the
// per-session cart registry.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"partsmarket/internal/cart"
)

var ErrInvalidToken = errors.New("invalid token")

type Service struct {
	tokens    *tokenManager
	accessTTL time.Duration

	mu    sync.Mutex
	carts map[string]*cart.Store
}

func New(accessTTL time.Duration) *Service {
	return newWithClock(accessTTL, time.Now)
}

func newWithClock(accessTTL time.Duration, now func() time.Time) *Service {
	if accessTTL <= 0 {
		accessTTL = 3 * time.Hour
	}
	return &Service{
		tokens:    newTokenManager(now),
		accessTTL: accessTTL,
		carts:     make(map[string]*cart.Store),
	}
}

// Issue starts a new session and returns its bearer token.
func (s *Service) Issue(ctx context.Context) (token, sessionID string, err error) {
	sessionID = uuid.NewString()
	token, err = s.tokens.Issue(sessionID, s.accessTTL)
	if err != nil {
		return "", "", err
	}
	return token, sessionID, nil
}

func (s *Service) LookupByToken(ctx context.Context, token string) (string, error) {
	meta, ok := s.tokens.Validate(token)
	if !ok {
		return "", ErrInvalidToken
	}
	return meta.SessionID, nil
}

func (s *Service) AccessTTLSeconds() int {
	return int(s.accessTTL.Seconds())
}

// Cart returns the session's cart, creating it on first use. Carts are never
// shared between sessions.
func (s *Service) Cart(sessionID string) *cart.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[sessionID]
	if !ok {
		c = cart.NewStore(sessionID)
		s.carts[sessionID] = c
	}
	return c
}

// Sweep forgets expired tokens and the carts of sessions left without one.
// It returns the ids of those sessions so their other state can go too.
func (s *Service) Sweep(ctx context.Context) []string {
	dead := s.tokens.Sweep()
	if len(dead) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range dead {
		delete(s.carts, id)
	}
	return dead
}
