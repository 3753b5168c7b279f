package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/vaultarc/archive-backend/pkg/config"
	redisclient "github.com/vaultarc/archive-backend/pkg/redis"
)

// ErrSessionExpired is returned when a session key is gone, which for a
// sliding-TTL store means the inactivity window elapsed.
var ErrSessionExpired = errors.New("session expired")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

type sessionKeyer interface {
	SessionKey(accessID string) string
}

// Manager tracks live sessions in Redis with a sliding inactivity TTL.
// A session that is not touched within the window simply disappears; the
// authentication provider turns that observation into a session-timeout audit
// entry. Expiry never touches in-flight transitions.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	ttl   time.Duration
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
	Touch(ctx context.Context, accessID string) (bool, error)
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client, cfg config.SessionConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.InactivityTimeout <= 0 {
		return nil, fmt.Errorf("session inactivity timeout must be positive")
	}
	return &Manager{
		store: client,
		keyer: client,
		ttl:   cfg.InactivityTimeout,
	}, nil
}

// NewAccessID mints an opaque session identifier used as the JWT jti.
func NewAccessID() string {
	return uuid.NewString()
}

// Start registers a session for the provided access ID.
func (m *Manager) Start(ctx context.Context, accessID string, userID uuid.UUID) error {
	if strings.TrimSpace(accessID) == "" {
		return fmt.Errorf("access id is required")
	}
	if userID == uuid.Nil {
		return fmt.Errorf("user id is required")
	}
	return m.store.Set(ctx, m.keyer.SessionKey(accessID), userID.String(), m.ttl)
}

// HasSession reports whether the session is still live without extending it.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, nil
	}
	_, err := m.store.Get(ctx, m.keyer.SessionKey(accessID))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Touch extends the inactivity window. It returns false when the session has
// already expired.
func (m *Manager) Touch(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, nil
	}
	return m.store.Expire(ctx, m.keyer.SessionKey(accessID), m.ttl)
}

// Owner returns the user ID bound to the session.
func (m *Manager) Owner(ctx context.Context, accessID string) (uuid.UUID, error) {
	raw, err := m.store.Get(ctx, m.keyer.SessionKey(accessID))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return uuid.Nil, ErrSessionExpired
		}
		return uuid.Nil, err
	}
	return uuid.Parse(raw)
}

// Terminate removes the session immediately.
func (m *Manager) Terminate(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return nil
	}
	return m.store.Del(ctx, m.keyer.SessionKey(accessID))
}
