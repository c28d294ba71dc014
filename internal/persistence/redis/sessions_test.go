package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/library-ledger/internal/persistence"
)

// newTestStore connects to the Redis named by LEDGER_TEST_REDIS_ADDR and
// isolates the test under a random key prefix.
func newTestStore(t *testing.T) *SessionStore {
	t.Helper()

	addr := os.Getenv("LEDGER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LEDGER_TEST_REDIS_ADDR not set")
	}

	store, err := Connect(context.Background(), Options{
		Addr:   addr,
		Prefix: fmt.Sprintf("ledger-test:%s:", uuid.NewString()),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.DeleteAllSessions(context.Background())
		store.Close()
	})
	return store
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	created, err := store.CreateSession(ctx, persistence.Session{ID: "s1", Token: "tok-1", MemberID: 2, CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)

	_, err = store.CreateSession(ctx, persistence.Session{ID: "s2", Token: "tok-1", MemberID: 3, CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
	assert.ErrorIs(t, err, persistence.ErrDuplicate)

	fetched, err := store.GetSession(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, created.MemberID, fetched.MemberID)
	assert.True(t, created.ExpiresAt.Equal(fetched.ExpiresAt))

	ttl, err := store.client.TTL(ctx, store.sessionKey("tok-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Minute)

	_, err = store.CreateSession(ctx, persistence.Session{ID: "s3", Token: "tok-3", MemberID: 4, CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute)})
	require.NoError(t, err)

	require.NoError(t, store.DeleteExpiredSessions(ctx, now.Add(30*time.Minute)))
	_, err = store.GetSession(ctx, "tok-3")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	require.NoError(t, store.DeleteSession(ctx, "tok-1"))
	assert.ErrorIs(t, store.DeleteSession(ctx, "tok-1"), persistence.ErrNotFound)

	_, err = store.CreateSession(ctx, persistence.Session{ID: "s4", Token: "tok-4", MemberID: 2, CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)
	require.NoError(t, store.DeleteAllSessions(ctx))
	_, err = store.GetSession(ctx, "tok-4")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestSessionStore_RejectsIncompleteSessions(t *testing.T) {
	store := NewSessionStore(nil, "")
	_, err := store.CreateSession(context.Background(), persistence.Session{Token: "tok"})
	assert.ErrorIs(t, err, persistence.ErrConstraintViolation)
	assert.Equal(t, "ledger:session:abc", store.sessionKey("abc"))
}
