package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// InMemoryIdempotencyStore remembers handled event IDs in a map until their TTL
// runs out. Marks are lost on restart, so it only suits single-instance setups.
type InMemoryIdempotencyStore struct {
	mu        sync.Mutex
	expiresAt map[string]time.Time
	now       func() time.Time

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates the store and starts sweeping expired
// marks every sweepEvery. A non-positive interval disables the sweeper.
func NewInMemoryIdempotencyStore(sweepEvery time.Duration) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		expiresAt: make(map[string]time.Time),
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	if sweepEvery > 0 {
		s.wg.Add(1)
		go s.sweepLoop(sweepEvery)
	}
	return s
}

// MarkProcessed returns true when eventID had no live mark
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.expiresAt[eventID]; ok && now.Before(exp) {
		return false, nil
	}
	s.expiresAt[eventID] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether eventID carries a live mark
func (s *InMemoryIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expiresAt[eventID]
	return ok && s.now().Before(exp), nil
}

// Forget removes the mark of eventID
func (s *InMemoryIdempotencyStore) Forget(ctx context.Context, eventID string) error {
	s.mu.Lock()
	delete(s.expiresAt, eventID)
	s.mu.Unlock()
	return nil
}

// Close stops the sweeper. Safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
	return nil
}

// Size returns the number of marks held, expired ones included
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expiresAt)
}

func (s *InMemoryIdempotencyStore) sweepLoop(every time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryIdempotencyStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, exp := range s.expiresAt {
		if !now.Before(exp) {
			delete(s.expiresAt, id)
		}
	}
}

// RedisIdempotencyStore shares handled event IDs between instances.
// Marks live under salesdocs:event:<id> and expire with their TTL.
type RedisIdempotencyStore struct {
	client redis.UniversalClient
}

// NewRedisIdempotencyStore creates a store on an existing client.
// Close leaves the client open; its owner closes it.
func NewRedisIdempotencyStore(client redis.UniversalClient) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

// IdempotencyKey returns the Redis key of an event mark
func IdempotencyKey(eventID string) string {
	return KeyPrefix + "event:" + eventID
}

// MarkProcessed sets the mark with SET NX, so exactly one caller wins
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, IdempotencyKey(eventID), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event %s: %w", eventID, err)
	}
	return ok, nil
}

// IsProcessed reports whether the mark exists
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, IdempotencyKey(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check event %s: %w", eventID, err)
	}
	return n > 0, nil
}

// Forget deletes the mark
func (s *RedisIdempotencyStore) Forget(ctx context.Context, eventID string) error {
	if err := s.client.Del(ctx, IdempotencyKey(eventID)).Err(); err != nil {
		return fmt.Errorf("failed to forget event %s: %w", eventID, err)
	}
	return nil
}

// Close is a no-op
func (s *RedisIdempotencyStore) Close() error {
	return nil
}

var (
	_ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
	_ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
)
