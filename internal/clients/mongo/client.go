package mongo

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tourbook/internal/config"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var (
	// ErrNotInitialized is returned by Shutdown when Init never succeeded.
	ErrNotInitialized = errors.New("mongo client not initialized")
	// ErrShutdown is returned by Shutdown once the client is already closed.
	ErrShutdown = errors.New("mongo client already shut down")
)

var (
	drv      = liveDriver
	client   *mongo.Client
	db       *mongo.Database
	shutdown bool
	mu       sync.Mutex
)

// Init initializes the MongoDB connection (first success wins, thread-safe).
// A failed Init leaves nothing behind so the next call retries.
func Init(ctx context.Context, cfg config.Config, log *slog.Logger) (*mongo.Client, *mongo.Database, error) {
	mu.Lock()
	defer mu.Unlock()

	if client != nil && db != nil {
		return client, db, nil
	}

	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetConnectTimeout(10 * time.Second).
		SetAppName("tourbook")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cli, err := drv.connect(opts)
	if err != nil {
		log.Error("failed to connect to mongo", "err", err)
		return nil, nil, err
	}

	if err := drv.ping(ctx, cli); err != nil {
		log.Error("failed to ping mongo", "err", err)
		_ = drv.disconnect(ctx, cli)
		return nil, nil, err
	}

	client = cli
	db = cli.Database(cfg.MongoDBName)
	shutdown = false

	log.Info("successfully connected to mongo", "db", cfg.MongoDBName)
	return client, db, nil
}

// Client returns the singleton MongoDB client instance.
func Client() *mongo.Client {
	mu.Lock()
	defer mu.Unlock()
	return client
}

// DB returns the singleton MongoDB database instance.
func DB() *mongo.Database {
	mu.Lock()
	defer mu.Unlock()
	return db
}

// Ping checks the live connection, used by the readiness probe.
func Ping(ctx context.Context) error {
	mu.Lock()
	cli := client
	mu.Unlock()

	if cli == nil {
		return ErrNotInitialized
	}

	ctx, cancel := WithRepoTimeout(ctx, 2*time.Second)
	defer cancel()
	return drv.ping(ctx, cli)
}

// Shutdown gracefully shuts down the MongoDB connection.
// Safe to call more than once.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if client == nil {
		if shutdown {
			return ErrShutdown
		}
		shutdown = true
		return ErrNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := drv.disconnect(ctx, client)

	client = nil
	db = nil
	shutdown = true

	return err
}
