// Package session translates between a user identity and the opaque handle
// carried by the browser. The store keeps only the user identifier, never the
// full record — the manager re-fetches the user on every resolve so session
// data always reflects the latest persisted state, including admin changes.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sitegate-io/sitegate/internal/db"
	"github.com/sitegate-io/sitegate/internal/repositories"
)

// DefaultTTL is the sliding inactivity window applied when the manager is
// created with a zero TTL.
const DefaultTTL = 30 * time.Minute

// expiredRetention is how long a record is kept past its sliding deadline so
// that an expired session is still reported as Expired rather than NotFound.
const expiredRetention = time.Hour

var (
	// ErrNotFound is returned when no session exists for the handle, or the
	// referenced user no longer exists.
	ErrNotFound = errors.New("session: not found")

	// ErrExpired is returned when the session's sliding window has elapsed.
	ErrExpired = errors.New("session: expired")
)

// Record is the serialized form of a session: a reference to the user
// identifier plus the current sliding deadline.
type Record struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store is the keyed store backing the session layer. Implementations retain
// records for expiredRetention past their deadline and may evict them
// afterwards.
type Store interface {
	Set(ctx context.Context, handle string, rec Record) error
	Get(ctx context.Context, handle string) (Record, error)
	Delete(ctx context.Context, handle string) error
}

// handleBytes is the entropy of a session handle before encoding. 32 bytes
// gives 256 bits, making handles unguessable.
const handleBytes = 32

// newHandle generates a fresh opaque session handle.
func newHandle() (string, error) {
	b := make([]byte, handleBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: generating handle: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Manager owns the handle-to-identity mapping. All other components read and
// write sessions only through it.
type Manager struct {
	store Store
	users repositories.UserRepository
	ttl   time.Duration

	// mu serializes expiration updates so concurrent touches on the same
	// handle cannot interleave a read-modify-write. Last writer wins on the
	// deadline itself, which only affects session lifetime, not identity.
	mu sync.Mutex
}

// NewManager creates a Manager with the given sliding TTL (DefaultTTL if zero).
func NewManager(store Store, users repositories.UserRepository, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, users: users, ttl: ttl}
}

// Create allocates a fresh handle for the user and records it with a full
// sliding window.
func (m *Manager) Create(ctx context.Context, user *db.User) (string, error) {
	handle, err := newHandle()
	if err != nil {
		return "", err
	}
	rec := Record{UserID: user.ID, ExpiresAt: time.Now().Add(m.ttl)}
	if err := m.store.Set(ctx, handle, rec); err != nil {
		return "", fmt.Errorf("session: storing: %w", err)
	}
	return handle, nil
}

// Resolve returns the user behind the handle, re-fetched from the persistent
// store. Returns ErrExpired past the sliding deadline and ErrNotFound when
// the handle is unknown or the user record is gone.
func (m *Manager) Resolve(ctx context.Context, handle string) (*db.User, error) {
	rec, err := m.store.Get(ctx, handle)
	if err != nil {
		return nil, err
	}

	// The record is left in place for the store to evict after the
	// retention window, so repeated resolves keep answering Expired
	// rather than NotFound.
	if time.Now().After(rec.ExpiresAt) {
		return nil, ErrExpired
	}

	user, err := m.users.GetByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			_ = m.store.Delete(ctx, handle)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: resolving user: %w", err)
	}

	return user, nil
}

// Touch extends the sliding window of an active session. Expired or unknown
// handles are left untouched and reported as such.
func (m *Manager) Touch(ctx context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.Get(ctx, handle)
	if err != nil {
		return err
	}
	if time.Now().After(rec.ExpiresAt) {
		return ErrExpired
	}

	rec.ExpiresAt = time.Now().Add(m.ttl)
	if err := m.store.Set(ctx, handle, rec); err != nil {
		return fmt.Errorf("session: extending: %w", err)
	}
	return nil
}

// Destroy invalidates the session immediately. Destroying an absent session
// is a no-op.
func (m *Manager) Destroy(ctx context.Context, handle string) error {
	return m.store.Delete(ctx, handle)
}
