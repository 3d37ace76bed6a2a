package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPendingStore_SingleUse(t *testing.T) {
	s := newPendingStore(time.Minute)
	s.put("state-1", pendingLogin{ReturnPath: "/dashboard"})

	p, ok := s.consume("state-1")
	assert.True(t, ok)
	assert.Equal(t, "/dashboard", p.ReturnPath)

	_, ok = s.consume("state-1")
	assert.False(t, ok, "a state value must not be redeemable twice")
}

func TestPendingStore_UnknownState(t *testing.T) {
	s := newPendingStore(time.Minute)

	_, ok := s.consume("never-issued")
	assert.False(t, ok)
}

func TestPendingStore_StaleStateExpires(t *testing.T) {
	s := newPendingStore(20 * time.Millisecond)
	s.put("state-1", pendingLogin{ReturnPath: "/dashboard"})

	time.Sleep(50 * time.Millisecond)

	_, ok := s.consume("state-1")
	assert.False(t, ok, "stale pending logins must be rejected")
}
