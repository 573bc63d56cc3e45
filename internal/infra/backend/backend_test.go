package backend

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/melodify/internal/infra/cache"
	"github.com/osa030/melodify/internal/infra/config"
	"github.com/osa030/melodify/internal/infra/postgrest"
)

func restConfig() *config.Config {
	return &config.Config{
		Supabase: config.SupabaseConfig{URL: "https://project.supabase.co", AnonKey: "anon"},
		Catalog:  config.CatalogConfig{Driver: "rest", CacheTTLSec: 300},
	}
}

func TestOpen_Rest(t *testing.T) {
	b, err := Open(context.Background(), restConfig(), "anon")
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &postgrest.Client{}, b.Catalog)
	assert.Nil(t, b.Redis)
	assert.Nil(t, b.Events())
}

func TestOpen_WithCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := restConfig()
	cfg.Redis.Addr = mr.Addr()

	b, err := Open(context.Background(), cfg, "anon")
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &cache.Catalog{}, b.Catalog)
	assert.NotNil(t, b.Redis)
	assert.NotNil(t, b.Events())
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
		apiKey string
	}{
		{name: "unknown driver", mutate: func(c *config.Config) { c.Catalog.Driver = "sqlite" }, apiKey: "anon"},
		{name: "missing api key", mutate: func(c *config.Config) {}, apiKey: ""},
		{name: "redis unreachable", mutate: func(c *config.Config) { c.Redis.Addr = "127.0.0.1:1" }, apiKey: "anon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := restConfig()
			tt.mutate(cfg)
			_, err := Open(context.Background(), cfg, tt.apiKey)
			assert.Error(t, err)
		})
	}
}
