// Package session keeps pending spreadsheet imports between preview and confirm.
package session

//go:generate mockgen -source=store.go -destination=mocks/store_mock.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"truck-tracker-backend/internal/config"
	"truck-tracker-backend/internal/models"
)

var (
	ErrNotFound = errors.New("import session not found or expired")
	ErrLocked   = errors.New("import session is already being confirmed")
)

type ImportSession struct {
	ID                   string                   `json:"id"`
	Templates            []models.MonthlyTemplate `json:"templates"`
	UserID               string                   `json:"user_id"`
	CreatedAt            time.Time                `json:"created_at"`
	TotalRecordsToCreate int                      `json:"total_records_to_create"`
}

// Store holds import sessions for a bounded time. Lock guards confirm so a
// session is materialized at most once; unlock must always be called.
type Store interface {
	Save(ctx context.Context, s *ImportSession) error
	Get(ctx context.Context, id string) (*ImportSession, error)
	Delete(ctx context.Context, id string) error
	Lock(ctx context.Context, id string) (unlock func(), err error)
	Close() error
}

// New builds the store selected by SESSION_STORE.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.SessionStore {
	case config.SessionStoreMemory:
		return NewMemoryStore(cfg.SessionTTL), nil
	case config.SessionStoreBadger:
		return NewBadgerStore(cfg.BadgerPath, cfg.SessionTTL)
	case config.SessionStoreRedis:
		return NewRedisStore(ctx, RedisOptions{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.SessionTTL)
	default:
		return nil, fmt.Errorf("unsupported session store %q", cfg.SessionStore)
	}
}

// localLocks is an in-process try-lock keyed by session id.
type localLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newLocalLocks() *localLocks {
	return &localLocks{held: make(map[string]struct{})}
}

func (l *localLocks) tryLock(id string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[id]; ok {
		return nil, ErrLocked
	}
	l.held[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, id)
			l.mu.Unlock()
		})
	}, nil
}
