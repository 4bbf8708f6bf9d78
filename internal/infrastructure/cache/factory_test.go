package cache

import (
	"context"
	"testing"

	"github.com/erp/salesdocs/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// unreachableRedis points at a port nothing listens on
var unreachableRedis = config.RedisConfig{Host: "127.0.0.1", Port: 1}

func TestDraftStoreFactory_CreateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory backend", func(t *testing.T) {
		f := NewDraftStoreFactory(config.DocumentsConfig{DraftBackend: config.DraftBackendMemory}, unreachableRedis)
		store, client, err := f.CreateStore(ctx)
		require.NoError(t, err)
		assert.Nil(t, client)
		assert.IsType(t, &InMemoryDraftStore{}, store)
	})

	t.Run("database backend uses the durable store", func(t *testing.T) {
		durable := NewInMemoryDraftStore()
		f := NewDraftStoreFactory(config.DocumentsConfig{DraftBackend: config.DraftBackendDatabase}, unreachableRedis,
			WithDurableStore(durable), WithLogger(zap.NewNop()))
		store, _, err := f.CreateStore(ctx)
		require.NoError(t, err)
		assert.Same(t, durable, store)
	})

	t.Run("database backend without a durable store", func(t *testing.T) {
		f := NewDraftStoreFactory(config.DocumentsConfig{DraftBackend: config.DraftBackendDatabase}, unreachableRedis)
		_, _, err := f.CreateStore(ctx)
		assert.Error(t, err)
	})

	t.Run("unreachable redis falls back to memory", func(t *testing.T) {
		f := NewDraftStoreFactory(config.DocumentsConfig{DraftBackend: config.DraftBackendRedis}, unreachableRedis)
		store, client, err := f.CreateStore(ctx)
		require.NoError(t, err)
		assert.Nil(t, client)
		assert.IsType(t, &InMemoryDraftStore{}, store)
	})

	t.Run("unreachable redis without fallback fails", func(t *testing.T) {
		f := NewDraftStoreFactory(config.DocumentsConfig{DraftBackend: config.DraftBackendRedis}, unreachableRedis,
			WithInMemoryFallback(false))
		_, _, err := f.CreateStore(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Redis required")
	})

	t.Run("unknown backend", func(t *testing.T) {
		f := NewDraftStoreFactory(config.DocumentsConfig{DraftBackend: "etcd"}, unreachableRedis)
		_, _, err := f.CreateStore(ctx)
		assert.Error(t, err)
	})
}
