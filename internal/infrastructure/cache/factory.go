package cache

import (
	"context"
	"fmt"

	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DraftStoreFactory selects the draft store for the configured backend
type DraftStoreFactory struct {
	documents             config.DocumentsConfig
	redisConfig           config.RedisConfig
	durable               document.DraftStore
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// DraftStoreFactoryOption is a functional option for configuring the factory
type DraftStoreFactoryOption func(*DraftStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) DraftStoreFactoryOption {
	return func(f *DraftStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the in-memory store.
// Default is true.
func WithInMemoryFallback(allow bool) DraftStoreFactoryOption {
	return func(f *DraftStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// WithDurableStore supplies the database-backed store used for the "database" backend
func WithDurableStore(store document.DraftStore) DraftStoreFactoryOption {
	return func(f *DraftStoreFactory) {
		f.durable = store
	}
}

// NewDraftStoreFactory creates a new factory
func NewDraftStoreFactory(documents config.DocumentsConfig, redisCfg config.RedisConfig, opts ...DraftStoreFactoryOption) *DraftStoreFactory {
	f := &DraftStoreFactory{
		documents:             documents,
		redisConfig:           redisCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns the store for the configured backend.
// A Redis backend that cannot be reached falls back to memory when allowed;
// the returned client is nil unless Redis is in use and must be closed by the caller.
func (f *DraftStoreFactory) CreateStore(ctx context.Context) (document.DraftStore, *redis.Client, error) {
	switch f.documents.DraftBackend {
	case config.DraftBackendMemory:
		f.logger.Info("Using in-memory draft store")
		return NewInMemoryDraftStore(), nil, nil

	case config.DraftBackendDatabase, "":
		if f.durable == nil {
			return nil, nil, fmt.Errorf("draft backend %q needs a durable store", config.DraftBackendDatabase)
		}
		f.logger.Info("Using database draft store")
		return f.durable, nil, nil

	case config.DraftBackendRedis:
		client, err := NewRedisClient(ctx, f.redisConfig)
		if err == nil {
			f.logger.Info("Using Redis draft store", zap.String("addr", f.redisConfig.Addr()))
			return NewRedisDraftStore(client, f.documents.DraftTTL), client, nil
		}
		if !f.allowInMemoryFallback {
			return nil, nil, fmt.Errorf("Redis required for drafts but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory draft store. "+
			"Drafts will not survive a restart.",
			zap.Error(err),
		)
		return NewInMemoryDraftStore(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown draft backend %q", f.documents.DraftBackend)
	}
}
