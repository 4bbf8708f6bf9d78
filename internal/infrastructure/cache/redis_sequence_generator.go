package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/redis/go-redis/v9"
)

// RedisSequenceGenerator issues "<PREFIX>-<YYYY>-<NNNNN>" numbers with INCR on
// salesdocs:seq:<type>:<year>. INCR is atomic, so concurrent callers never share a number.
type RedisSequenceGenerator struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisSequenceGenerator creates a Redis-backed sequence generator
func NewRedisSequenceGenerator(client redis.UniversalClient) *RedisSequenceGenerator {
	return &RedisSequenceGenerator{client: client, now: time.Now}
}

// SequenceKey returns the counter key for a type and year
func SequenceKey(t document.DocumentType, year int) string {
	return fmt.Sprintf("%sseq:%s:%d", KeyPrefix, t, year)
}

// Next returns the next number for the document type
func (g *RedisSequenceGenerator) Next(ctx context.Context, t document.DocumentType) (string, error) {
	if !t.IsValid() {
		return "", document.ErrUnknownDocumentType
	}
	year := g.now().Year()
	value, err := g.client.Incr(ctx, SequenceKey(t, year)).Result()
	if err != nil {
		return "", fmt.Errorf("failed to increment sequence: %w", err)
	}
	return fmt.Sprintf("%s-%04d-%05d", t.Prefix(), year, value), nil
}

var _ document.SequenceGenerator = (*RedisSequenceGenerator)(nil)
