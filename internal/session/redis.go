package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const lockPrefix = "import_session_lock:"

type RedisOptions struct {
	Address  string
	Password string
	DB       int
}

// RedisStore shares sessions between server instances. Confirm locks are
// distributed through redislock.
type RedisStore struct {
	rdb    *redis.Client
	locker *redislock.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, opts RedisOptions, ttl time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Address, err)
	}
	return NewRedisStoreFromClient(rdb, ttl), nil
}

func NewRedisStoreFromClient(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, locker: redislock.New(rdb), ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, sess *ImportSession) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return s.rdb.Set(ctx, keyPrefix+sess.ID, payload, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (*ImportSession, error) {
	val, err := s.rdb.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var sess ImportSession
	if err := json.Unmarshal(val, &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, keyPrefix+id).Err()
}

// lockTTL outlives the session key, which is always written before the lock
// is taken.
func (s *RedisStore) lockTTL() time.Duration {
	return s.ttl + time.Minute
}

func (s *RedisStore) Lock(ctx context.Context, id string) (func(), error) {
	lock, err := s.locker.Obtain(ctx, lockPrefix+id, s.lockTTL(), nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("obtaining lock: %w", err)
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
