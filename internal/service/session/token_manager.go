package session

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

type tokenMeta struct {
	SessionID string
	ExpiresAt time.Time
}

type tokenManager struct {
	mu     sync.RWMutex
	tokens map[string]tokenMeta
	now    func() time.Time
}

func newTokenManager(now func() time.Time) *tokenManager {
	return &tokenManager{
		tokens: make(map[string]tokenMeta),
		now:    now,
	}
}

func (m *tokenManager) Issue(sessionID string, ttl time.Duration) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	meta := tokenMeta{
		SessionID: sessionID,
		ExpiresAt: m.now().Add(ttl),
	}
	m.mu.Lock()
	m.tokens[token] = meta
	m.mu.Unlock()
	return token, nil
}

func (m *tokenManager) Validate(token string) (tokenMeta, bool) {
	m.mu.RLock()
	meta, ok := m.tokens[token]
	m.mu.RUnlock()
	if !ok {
		return tokenMeta{}, false
	}
	// expired entries stay until Sweep so their carts get dropped with them
	if m.now().After(meta.ExpiresAt) {
		return tokenMeta{}, false
	}
	return meta, true
}

// Sweep drops expired tokens and reports which sessions no longer hold any
// live token.
func (m *tokenManager) Sweep() []string {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	live := make(map[string]bool)
	expired := make(map[string]bool)
	for token, meta := range m.tokens {
		if now.After(meta.ExpiresAt) {
			delete(m.tokens, token)
			expired[meta.SessionID] = true
			continue
		}
		live[meta.SessionID] = true
	}

	var dead []string
	for id := range expired {
		if !live[id] {
			dead = append(dead, id)
		}
	}
	return dead
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
