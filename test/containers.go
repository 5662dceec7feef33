//go:build e2e

package test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	mongoImage = "mongo:8.0"
	redisImage = "redis:7-alpine"
)

// runContainer starts req and registers its termination with t.
func runContainer(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest) testcontainers.Container {
	t.Helper()
	t.Logf("starting %s", req.Image)

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if c != nil {
		t.Cleanup(func() {
			if err := c.Terminate(context.Background()); err != nil {
				t.Logf("terminate %s: %v", req.Image, err)
			}
		})
	}
	require.NoError(t, err, "start %s", req.Image)
	return c
}

// startMongo runs a throwaway MongoDB and returns its connection URI.
func startMongo(ctx context.Context, t *testing.T) string {
	t.Helper()
	c := runContainer(ctx, t, testcontainers.ContainerRequest{
		Image:        mongoImage,
		ExposedPorts: []string{"27017/tcp"},
		Env: map[string]string{
			"MONGO_INITDB_ROOT_USERNAME": "root",
			"MONGO_INITDB_ROOT_PASSWORD": "example",
			"MONGO_INITDB_DATABASE":      e2eDBName,
		},
		WaitingFor: wait.ForExec([]string{"mongosh", "--quiet", "--eval", "db.adminCommand('ping')"}).
			WithStartupTimeout(60 * time.Second),
	})

	// the entrypoint restarts mongod once the init user exists
	time.Sleep(2 * time.Second)

	endpoint, err := c.PortEndpoint(ctx, "27017/tcp", "")
	require.NoError(t, err)
	return fmt.Sprintf("mongodb://root:example@%s/", endpoint)
}

// startRedis runs a throwaway Redis and returns a redis:// URL for db 0.
func startRedis(ctx context.Context, t *testing.T) string {
	t.Helper()
	c := runContainer(ctx, t, testcontainers.ContainerRequest{
		Image:        redisImage,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	})

	endpoint, err := c.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)
	return "redis://" + endpoint + "/0"
}
