package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), "redis://"+mr.Addr(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func stores(t *testing.T) map[string]Store {
	rs, _ := setupRedis(t)
	return map[string]Store{
		"redis":  rs,
		"memory": NewMemoryStore(100, time.Hour),
	}
}

func TestStore_ReserveCompleteReplay(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := Key("vote.cast", 1, 2, "abc")

			rec, err := s.Reserve(ctx, key)
			require.NoError(t, err)
			assert.Nil(t, rec)

			_, err = s.Reserve(ctx, key)
			require.ErrorIs(t, err, ErrInProgress)

			require.NoError(t, s.Complete(ctx, key, Record{Status: 201, ContentType: "application/json", Body: []byte(`{"voted":true,"count":1}`)}))

			rec, err = s.Reserve(ctx, key)
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.True(t, rec.Done)
			assert.Equal(t, 201, rec.Status)
			assert.JSONEq(t, `{"voted":true,"count":1}`, string(rec.Body))
		})
	}
}

func TestStore_ReleaseAllowsRetry(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := Key("comment.create", 7, 2, "k1")

			_, err := s.Reserve(ctx, key)
			require.NoError(t, err)
			require.NoError(t, s.Release(ctx, key))

			rec, err := s.Reserve(ctx, key)
			require.NoError(t, err)
			assert.Nil(t, rec)
		})
	}
}

func TestStore_ConcurrentReserveSingleWinner(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := Key("vote.cancel", 1, 1, "race")

			const workers = 16
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				winners int
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					rec, err := s.Reserve(ctx, key)
					if err == nil && rec == nil {
						mu.Lock()
						winners++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, winners)
		})
	}
}

func TestRedisStore_RecordsExpire(t *testing.T) {
	s, mr := setupRedis(t)
	ctx := context.Background()
	key := Key("vote.cast", 1, 1, "ttl")

	_, err := s.Reserve(ctx, key)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, key, Record{Status: 201}))
	assert.Equal(t, time.Hour, mr.TTL(key))

	mr.FastForward(2 * time.Hour)

	rec, err := s.Reserve(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, rec, "expired record must not be replayed")
}

func TestRedisStore_Ping(t *testing.T) {
	s, mr := setupRedis(t)
	require.NoError(t, s.Ping(context.Background()))
	assert.Equal(t, "redis", s.Name())

	mr.SetError("ERR unavailable")
	assert.Error(t, s.Ping(context.Background()))
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "://nope", time.Hour)
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "idem:vote.cast:10:3:abc", Key("vote.cast", 10, 3, "abc"))
	assert.NotEqual(t, Key("vote.cast", 10, 3, "abc"), Key("vote.cast", 10, 4, "abc"))
}
