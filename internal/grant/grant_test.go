package grant

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyberprint/internal/model"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client), s
}

func testGrant(t *testing.T) model.ContentAccessGrant {
	token, err := NewToken()
	require.NoError(t, err)
	return model.ContentAccessGrant{
		Token:      token,
		DocumentID: "doc-1",
		CenterID:   "center-1",
		ExpiresAt:  time.Now().Add(2 * time.Minute).UTC().Truncate(time.Second),
	}
}

func TestNewToken(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	b, err := NewToken()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}

func TestStore_ClaimConsume(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := t.Context()
	g := testGrant(t)

	require.NoError(t, store.Save(ctx, g))

	got, err := store.Claim(ctx, g.Token)
	require.NoError(t, err)
	assert.Equal(t, g.DocumentID, got.DocumentID)
	assert.True(t, g.ExpiresAt.Equal(got.ExpiresAt))

	_, err = store.Claim(ctx, g.Token)
	assert.ErrorIs(t, err, ErrInUse)

	require.NoError(t, store.Consume(ctx, g.Token))
	_, err = store.Claim(ctx, g.Token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Release(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := t.Context()
	g := testGrant(t)
	require.NoError(t, store.Save(ctx, g))

	_, err := store.Claim(ctx, g.Token)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, g.Token))

	_, err = store.Claim(ctx, g.Token)
	assert.NoError(t, err)

	assert.NoError(t, store.Release(ctx, "unknown"))
}

func TestStore_Expiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := t.Context()
	g := testGrant(t)
	require.NoError(t, store.Save(ctx, g))

	mr.FastForward(3 * time.Minute)

	_, err := store.Claim(ctx, g.Token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveRejectsExpired(t *testing.T) {
	store, _ := newTestStore(t)
	g := testGrant(t)
	g.ExpiresAt = time.Now().Add(-time.Second)

	assert.Error(t, store.Save(t.Context(), g))
}

func TestStore_ConcurrentClaim(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := t.Context()
	g := testGrant(t)
	require.NoError(t, store.Save(ctx, g))

	var mu sync.Mutex
	wins := 0
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Claim(ctx, g.Token); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}
