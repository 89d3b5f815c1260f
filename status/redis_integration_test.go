//go:build integration
// +build integration

package status

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestRedisStoreIntegration exercises the full status lifecycle against a
// real Redis.
func TestRedisStoreIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("Skipping integration test. Set INTEGRATION_TESTS=1 to run")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start redis container")
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	store, err := NewRedisStore(ctx, RedisConfig{
		Addr:        fmt.Sprintf("%s:%s", host, port.Port()),
		DialTimeout: 5 * time.Second,
	})
	require.NoError(t, err, "Failed to connect to redis")
	defer store.Close()

	t.Run("status_lifecycle", func(t *testing.T) {
		require.NoError(t, store.SetStatus(ctx, "track.mp3", StatusQueued, nil))
		require.NoError(t, store.SetStatus(ctx, "track.mp3", StatusProcessing, map[string]string{"stage": "splitter"}))

		rec, err := store.Get(ctx, "track.mp3")
		require.NoError(t, err)
		assert.Equal(t, StatusProcessing, rec.Status)
		assert.Equal(t, "splitter", rec.Extra["stage"])

		require.NoError(t, store.SetError(ctx, "track.mp3", "splitter crashed"))
		files, err := store.ListByStatus(ctx, StatusError)
		require.NoError(t, err)
		assert.Contains(t, files, "track.mp3")

		require.NoError(t, store.ClearError(ctx, "track.mp3"))
		rec, err = store.Get(ctx, "track.mp3")
		require.NoError(t, err)
		assert.Equal(t, StatusQueued, rec.Status)
		assert.Empty(t, rec.LastError)
	})

	t.Run("retry_counters", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			count, err := store.IncrementRetry(ctx, "splitter", "track.mp3")
			require.NoError(t, err)
			assert.Equal(t, i, count)
		}

		require.NoError(t, store.ResetRetry(ctx, "splitter", "track.mp3"))
		count, err := store.RetryCount(ctx, "splitter", "track.mp3")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("untracked_file", func(t *testing.T) {
		rec, err := store.Get(ctx, "never-seen.mp3")
		require.NoError(t, err)
		assert.Equal(t, StatusUnknown, rec.Status)
	})
}
