package session

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"truck-tracker-backend/internal/config"
	"truck-tracker-backend/internal/metrics"
	"truck-tracker-backend/internal/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession() *ImportSession {
	start := "08:00"
	return &ImportSession{
		ID:     uuid.NewString(),
		UserID: "alice",
		Templates: []models.MonthlyTemplate{{
			Row:               2,
			Year:              2024,
			Month:             2,
			Terminal:          "A",
			ShippingNo:        "SHP001",
			DockCode:          "DOCK-A1",
			TruckRoute:        "Bangkok-Chonburi",
			PreparationStart:  &start,
			StatusPreparation: models.StatusFinished,
			StatusLoading:     models.StatusOnProcess,
			PreviewDays:       29,
		}},
		CreatedAt:            time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
		TotalRecordsToCreate: 29,
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()

	out := map[string]Store{
		"memory": NewMemoryStore(time.Minute),
	}

	bs, err := OpenBadgerStore(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil), time.Minute)
	require.NoError(t, err)
	out["badger"] = bs

	if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
		rs, err := NewRedisStore(context.Background(), RedisOptions{Address: addr}, time.Minute)
		require.NoError(t, err)
		out["redis"] = rs
	}

	t.Cleanup(func() {
		for _, s := range out {
			_ = s.Close()
		}
	})
	return out
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sess := sampleSession()

			_, err := store.Get(ctx, sess.ID)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Save(ctx, sess))

			got, err := store.Get(ctx, sess.ID)
			require.NoError(t, err)
			assert.Equal(t, sess.UserID, got.UserID)
			assert.Equal(t, sess.TotalRecordsToCreate, got.TotalRecordsToCreate)
			assert.True(t, sess.CreatedAt.Equal(got.CreatedAt))
			require.Len(t, got.Templates, 1)
			assert.Equal(t, sess.Templates[0], got.Templates[0])

			unlock, err := store.Lock(ctx, sess.ID)
			require.NoError(t, err)
			_, err = store.Lock(ctx, sess.ID)
			assert.ErrorIs(t, err, ErrLocked)
			unlock()

			unlock, err = store.Lock(ctx, sess.ID)
			require.NoError(t, err)
			unlock()

			require.NoError(t, store.Delete(ctx, sess.ID))
			_, err = store.Get(ctx, sess.ID)
			assert.ErrorIs(t, err, ErrNotFound)

			assert.NoError(t, store.Delete(ctx, sess.ID))
		})
	}
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	store := NewMemoryStore(30 * time.Minute)
	store.now = func() time.Time { return now }

	sess := sampleSession()
	require.NoError(t, store.Save(ctx, sess))

	now = now.Add(29 * time.Minute)
	_, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, store.entries)
}

func TestMemoryStoreSaveSweepsExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	store := NewMemoryStore(30 * time.Minute)
	store.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		require.NoError(t, store.Save(ctx, sampleSession()))
	}
	now = now.Add(20 * time.Minute)
	kept := sampleSession()
	require.NoError(t, store.Save(ctx, kept))
	require.Len(t, store.entries, 101)

	now = now.Add(10 * time.Minute)
	fresh := sampleSession()
	require.NoError(t, store.Save(ctx, fresh))
	assert.Len(t, store.entries, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ImportSessionsActive))

	now = now.Add(30 * time.Minute)
	require.NoError(t, store.Save(ctx, sampleSession()))
	assert.Len(t, store.entries, 1)
	_, err := store.Get(ctx, kept.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	sess := sampleSession()
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	got.UserID = "mallory"

	again, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", again.UserID)
}

func TestLockIsExclusiveUnderContention(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	var acquired atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Lock(context.Background(), "same"); err == nil {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), acquired.Load())
}

func TestUnlockIsIdempotent(t *testing.T) {
	locks := newLocalLocks()

	unlock, err := locks.tryLock("a")
	require.NoError(t, err)
	unlock()

	relock, err := locks.tryLock("a")
	require.NoError(t, err)
	unlock()

	_, err = locks.tryLock("a")
	assert.ErrorIs(t, err, ErrLocked)
	relock()
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := &config.Config{SessionStore: config.SessionStoreMemory, SessionTTL: time.Minute}
	s, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	cfg = &config.Config{SessionStore: config.SessionStoreBadger, SessionTTL: time.Minute, BadgerPath: t.TempDir()}
	s, err = New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, s)
	require.NoError(t, s.Close())

	cfg = &config.Config{SessionStore: "etcd"}
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestRedisStoreTTL(t *testing.T) {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_ADDRESS not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	store := NewRedisStoreFromClient(rdb, 45*time.Second)
	t.Cleanup(func() { _ = store.Close() })

	sess := sampleSession()
	require.NoError(t, store.Save(context.Background(), sess))

	ttl, err := rdb.TTL(context.Background(), keyPrefix+sess.ID).Result()
	require.NoError(t, err)
	assert.InDelta(t, 45, ttl.Seconds(), 2)

	unlock, err := store.Lock(context.Background(), sess.ID)
	require.NoError(t, err)
	lockTTL, err := rdb.PTTL(context.Background(), lockPrefix+sess.ID).Result()
	require.NoError(t, err)
	assert.Greater(t, lockTTL, ttl)
	unlock()

	require.NoError(t, store.Delete(context.Background(), sess.ID))
}

func TestRedisLockOutlivesSession(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = rdb.Close() })

	for _, ttl := range []time.Duration{time.Minute, 30 * time.Minute, 4 * time.Hour} {
		store := NewRedisStoreFromClient(rdb, ttl)
		assert.Greater(t, store.lockTTL(), ttl)
	}
}
