package identity_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/govtrack/backend/internal/cache"
	"github.com/govtrack/backend/internal/identity"
	"github.com/govtrack/backend/internal/models"
)

func TestJWTVerifierRoundTrip(t *testing.T) {
	v := identity.NewJWTVerifier("secret", "govtrack")
	token, err := v.Issue("alice", "alice@example.com", time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "alice", id.UID)
	require.Equal(t, "alice@example.com", id.Email)
}

func TestJWTVerifierRejects(t *testing.T) {
	v := identity.NewJWTVerifier("secret", "govtrack")

	_, err := v.Verify(context.Background(), "")
	require.ErrorIs(t, err, identity.ErrMissingToken)

	_, err = v.Verify(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, identity.ErrInvalidToken)

	other := identity.NewJWTVerifier("other-secret", "govtrack")
	forged, err := other.Issue("mallory", "admin@example.com", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), forged)
	require.ErrorIs(t, err, identity.ErrInvalidToken)

	expired, err := v.Issue("alice", "alice@example.com", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), expired)
	require.ErrorIs(t, err, identity.ErrInvalidToken)

	wrongIssuer, err := identity.NewJWTVerifier("secret", "elsewhere").Issue("alice", "", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), wrongIssuer)
	require.ErrorIs(t, err, identity.ErrInvalidToken)
}

type countingVerifier struct {
	calls atomic.Int32
}

func (c *countingVerifier) Verify(_ context.Context, token string) (models.Identity, error) {
	c.calls.Add(1)
	if token == "bad" {
		return models.Identity{}, identity.ErrInvalidToken
	}
	return models.Identity{UID: "u-" + token}, nil
}

func TestCachedVerifierSkipsRepeatChecks(t *testing.T) {
	next := &countingVerifier{}
	v := identity.NewCached(next, cache.NewIdentities(10, time.Minute))

	for range 3 {
		id, err := v.Verify(context.Background(), "tok")
		require.NoError(t, err)
		require.Equal(t, "u-tok", id.UID)
	}
	require.Equal(t, int32(1), next.calls.Load())

	for range 2 {
		_, err := v.Verify(context.Background(), "bad")
		require.ErrorIs(t, err, identity.ErrInvalidToken)
	}
	require.Equal(t, int32(3), next.calls.Load())
}

func TestDevBypassNeedsEmulatorFlag(t *testing.T) {
	_, ok := identity.DevBypass(false, identity.DevToken)
	require.False(t, ok)

	_, ok = identity.DevBypass(true, "some-real-token")
	require.False(t, ok)

	id, ok := identity.DevBypass(true, identity.DevToken)
	require.Equal(t, identity.BypassCompiled(), ok)
	if ok {
		require.Equal(t, identity.DevIdentity, id)
	}
}

type expiringVerifier struct {
	calls   atomic.Int32
	expires time.Time
}

func (e *expiringVerifier) Verify(_ context.Context, token string) (models.Identity, error) {
	e.calls.Add(1)
	return models.Identity{UID: "u-" + token, ExpiresAt: e.expires}, nil
}

func TestJWTVerifierReportsExpiry(t *testing.T) {
	v := identity.NewJWTVerifier("secret", "govtrack")
	token, err := v.Issue("alice", "alice@example.com", time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), id.ExpiresAt, 2*time.Second)
}

func TestCachedVerifierRechecksExpiredTokens(t *testing.T) {
	next := &expiringVerifier{expires: time.Now().Add(20 * time.Millisecond)}
	v := identity.NewCached(next, cache.NewIdentities(10, time.Hour))

	_, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, int32(1), next.calls.Load())

	time.Sleep(25 * time.Millisecond)
	_, err = v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, int32(2), next.calls.Load())
}
