package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// driver holds the connection lifecycle calls so tests can fail them on demand.
type driver struct {
	connect    func(opts *options.ClientOptions) (*mongo.Client, error)
	ping       func(ctx context.Context, cli *mongo.Client) error
	disconnect func(ctx context.Context, cli *mongo.Client) error
}

var liveDriver = driver{
	connect: func(opts *options.ClientOptions) (*mongo.Client, error) {
		cli, err := mongo.Connect(opts)
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		return cli, nil
	},
	ping: func(ctx context.Context, cli *mongo.Client) error {
		if err := cli.Ping(ctx, readpref.Primary()); err != nil {
			return fmt.Errorf("mongo ping: %w", err)
		}
		return nil
	},
	disconnect: func(ctx context.Context, cli *mongo.Client) error {
		if err := cli.Disconnect(ctx); err != nil {
			return fmt.Errorf("mongo disconnect: %w", err)
		}
		return nil
	},
}
