package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Config holds the MongoDB connection settings.
type Config struct {
	// URI is the MongoDB connection string, e.g. mongodb://localhost:27017.
	URI string

	// Database holds the organizations and admins collections and every
	// tenant container.
	Database string

	// MaxPoolSize is the maximum number of pooled connections.
	// Default: 50
	MaxPoolSize uint64

	// MinPoolSize is the number of connections kept open.
	// Default: 5
	MinPoolSize uint64

	// ConnectTimeout bounds a single connection attempt.
	// Default: 5s
	ConnectTimeout time.Duration

	// SocketTimeout bounds a single read or write on a connection.
	// Default: 10s
	SocketTimeout time.Duration

	// ConnectRetryTimeout bounds the total time spent retrying the initial ping.
	// Default: 1m
	ConnectRetryTimeout time.Duration
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("mongodb uri is required")
	}
	if c.Database == "" {
		return fmt.Errorf("mongodb database is required")
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 50
	}
	if c.MinPoolSize == 0 {
		c.MinPoolSize = 5
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.SocketTimeout == 0 {
		c.SocketTimeout = 10 * time.Second
	}
	if c.ConnectRetryTimeout == 0 {
		c.ConnectRetryTimeout = time.Minute
	}
}

// Connect creates a MongoDB client and waits, with exponential backoff, until
// the primary answers a ping.
func Connect(ctx context.Context, cfg *Config) (*mongo.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mongodb config is required")
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mongodb config: %w", err)
	}

	clientOptions := options.Client().ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetSocketTimeout(cfg.SocketTimeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("MongoDB not reachable yet")
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(cfg.ConnectRetryTimeout),
	)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info().Str("database", cfg.Database).Uint64("max_pool_size", cfg.MaxPoolSize).Msg("Connected to MongoDB")

	return client, nil
}
