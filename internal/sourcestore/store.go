// Package sourcestore keeps the parsed upload of a session so previews and
// commits can run without the caller re-sending the file.
package sourcestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

// Store holds one table per session.
type Store interface {
	Put(ctx context.Context, sessionID uuid.UUID, table domain.Table) error
	// Get returns domain.ErrSourceUnavailable when nothing is stored.
	Get(ctx context.Context, sessionID uuid.UUID) (domain.Table, error)
	Delete(ctx context.Context, sessionID uuid.UUID) error
}

const keyPrefix = "smartimport:source:"

// RedisStore stores tables as JSON values that expire after ttl.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps a redis client. A zero ttl keeps values forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func key(sessionID uuid.UUID) string {
	return keyPrefix + sessionID.String()
}

func (s *RedisStore) Put(ctx context.Context, sessionID uuid.UUID, table domain.Table) error {
	payload, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("failed to encode source table: %w", err)
	}
	if err := s.client.Set(ctx, key(sessionID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store source table: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID uuid.UUID) (domain.Table, error) {
	payload, err := s.client.Get(ctx, key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Table{}, errors.Wrapf(domain.ErrSourceUnavailable, "session %s", sessionID)
		}
		return domain.Table{}, fmt.Errorf("failed to load source table: %w", err)
	}
	var table domain.Table
	if err := json.Unmarshal(payload, &table); err != nil {
		return domain.Table{}, fmt.Errorf("failed to decode source table: %w", err)
	}
	return table, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete source table: %w", err)
	}
	return nil
}

// MemoryStore is a process-local Store. Entries expire lazily on read.
type MemoryStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	tables map[uuid.UUID]memoryEntry
}

type memoryEntry struct {
	table   domain.Table
	expires time.Time
}

// NewMemoryStore returns an empty store. A zero ttl keeps values forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, tables: make(map[uuid.UUID]memoryEntry)}
}

func (s *MemoryStore) Put(_ context.Context, sessionID uuid.UUID, table domain.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := memoryEntry{table: table}
	if s.ttl > 0 {
		entry.expires = s.now().Add(s.ttl)
	}
	s.tables[sessionID] = entry
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID uuid.UUID) (domain.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tables[sessionID]
	if ok && !entry.expires.IsZero() && s.now().After(entry.expires) {
		delete(s.tables, sessionID)
		ok = false
	}
	if !ok {
		return domain.Table{}, errors.Wrapf(domain.ErrSourceUnavailable, "session %s", sessionID)
	}
	return entry.table, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, sessionID)
	return nil
}
