package repository

import (
	"testing"
	"time"

	"github.com/AndrewKorobchuk/tsd/internal/cache"
	"github.com/AndrewKorobchuk/tsd/pkg/config"
	"github.com/AndrewKorobchuk/tsd/pkg/database"
	"github.com/AndrewKorobchuk/tsd/pkg/settings"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const backendURL = "http://backend.test:8001"

type testEnv struct {
	cache    *cache.Store
	settings *settings.Store
	clients  *ClientProvider
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Cache:    config.CacheConfig{Driver: "sqlite", Path: ":memory:"},
		Database: config.DatabaseConfig{LogLevel: "silent"},
	}
	db, err := database.Open(cfg, zap.NewNop())
	require.NoError(t, err)

	env := &testEnv{now: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)}
	env.cache = cache.NewStore(db, zap.NewNop())
	env.settings = settings.NewStore(db,
		settings.ConnectionSettings{ServerURL: "backend.test", Port: "8001"},
		settings.WithClock(func() time.Time { return env.now }),
	)
	env.clients = NewClientProvider(env.settings, 0, zap.NewNop())
	return env
}

func strPtr(s string) *string { return &s }

func receive[T any](t *testing.T, sub *cache.Subscription[T]) []T {
	t.Helper()
	select {
	case rows, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return rows
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received")
		return nil
	}
}
