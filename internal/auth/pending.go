package auth

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// pendingTTL bounds how long an issued state value remains redeemable. The
// window must outlast the provider's own authorization timeout; a callback
// arriving later is rejected as stale.
const pendingTTL = 10 * time.Minute

// pendingLogin correlates an in-flight authorization-code exchange with the
// login request that started it. It is keyed by the opaque state parameter
// and consumed exactly once by the callback.
type pendingLogin struct {
	ReturnPath   string
	CodeVerifier string
	CreatedAt    time.Time
}

// pendingStore is the server-side keyed store of in-flight logins. Entries
// expire after their TTL and are evicted by the cache's background janitor;
// an abandoned login needs no compensating action since no session exists yet.
type pendingStore struct {
	mu sync.Mutex
	c  *gocache.Cache
}

func newPendingStore(ttl time.Duration) *pendingStore {
	return &pendingStore{c: gocache.New(ttl, 2*ttl)}
}

func (s *pendingStore) put(state string, p pendingLogin) {
	s.c.SetDefault(state, p)
}

// consume retrieves and deletes the pending login for state. The mutex makes
// redemption single-use under concurrent callbacks with a replayed state.
func (s *pendingStore) consume(state string) (pendingLogin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.c.Get(state)
	if !ok {
		return pendingLogin{}, false
	}
	s.c.Delete(state)
	return v.(pendingLogin), true
}
