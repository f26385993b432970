//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) string {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestRedis_SetGetDelete(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, setupRedis(t), 0)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "search:chips", []byte(`{"ok":true}`), time.Minute))

	value, ok, err := c.Get(ctx, "search:chips")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"ok":true}`, string(value))

	require.NoError(t, c.Delete(ctx, "search:chips"))

	_, ok, err = c.Get(ctx, "search:chips")
	require.NoError(t, err)
	assert.False(t, ok)
}
