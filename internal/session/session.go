// Package session issues and validates opaque browser session tokens backed
// by a TTL key-value store. The token itself is the only thing the browser
// holds; the server-side record carries the authenticated identity.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/autolinkhq/autolink/pkg/cryptox"
)

// DefaultTTL is the absolute session lifetime. Sessions are not renewed on
// use, so a login expires exactly this long after it was created.
const DefaultTTL = 7 * 24 * time.Hour

const keyPrefix = "session:"

var (
	// ErrNotFound indicates the token does not map to a live session, either
	// because it never existed or because it expired.
	ErrNotFound = errors.New("session: not found")
)

// Session is the server-side record for an authenticated browser.
type Session struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// KV is the minimal store surface the manager needs. Set must honour the TTL;
// Get returns ErrNotFound for missing or expired keys.
type KV interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Manager creates, validates, and destroys sessions.
type Manager struct {
	kv  KV
	ttl time.Duration
}

func NewManager(kv KV, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{kv: kv, ttl: ttl}
}

// TTL reports the session lifetime the manager stores entries with. The
// browser cookie lifetime is derived from it so the two expire together.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create mints a new opaque token and stores the session under it.
func (m *Manager) Create(ctx context.Context, sess Session) (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	if err := m.kv.Set(ctx, keyPrefix+token, payload, m.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Validate resolves a token to its session, or ErrNotFound.
func (m *Manager) Validate(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNotFound
	}

	payload, err := m.kv.Get(ctx, keyPrefix+token)
	if err != nil {
		return Session{}, err
	}

	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return sess, nil
}

// Destroy removes the session. Destroying an unknown token is not an error,
// logout must be idempotent.
func (m *Manager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.kv.Del(ctx, keyPrefix+token)
}

// Ping reports whether the backing store is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	return m.kv.Ping(ctx)
}
