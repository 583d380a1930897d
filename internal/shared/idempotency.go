package shared

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore persists processed client tokens so a retried submission
// is recognised instead of reprocessed.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// PgIdempotencyStore stores keys in the idempotency_keys table.
type PgIdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewPgIdempotencyStore constructs the store.
func NewPgIdempotencyStore(pool *pgxpool.Pool) *PgIdempotencyStore {
	return &PgIdempotencyStore{pool: pool}
}

// CheckAndInsert ensures key uniqueness per module.
func (s *PgIdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, time.Now())
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok {
			if pgErr.Code == "23505" {
				return ErrIdempotencyConflict
			}
		}
		return err
	}
	return nil
}

// Delete removes a key, rolling back a reservation whose processing failed.
func (s *PgIdempotencyStore) Delete(ctx context.Context, key, module string) error {
	if s == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1 AND module = $2`, key, module)
	return err
}

// Cleanup removes entries older than retention.
func (s *PgIdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	return err
}

// MemoryIdempotencyStore is the in-process double used by tests.
type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryIdempotencyStore constructs an empty store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{seen: make(map[string]time.Time)}
}

// CheckAndInsert mirrors the unique-insert semantics of the pg store.
func (s *MemoryIdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	composite := module + ":" + key
	if _, ok := s.seen[composite]; ok {
		return ErrIdempotencyConflict
	}
	s.seen[composite] = time.Now()
	return nil
}

// Delete mirrors the pg rollback.
func (s *MemoryIdempotencyStore) Delete(ctx context.Context, key, module string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, module+":"+key)
	return nil
}

// Cleanup removes entries older than retention.
func (s *MemoryIdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	for k, at := range s.seen {
		if at.Before(cutoff) {
			delete(s.seen, k)
		}
	}
	return nil
}
