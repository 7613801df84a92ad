package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wolfeidau/orgtenant/internal/api"
	"github.com/wolfeidau/orgtenant/internal/auth"
	"github.com/wolfeidau/orgtenant/internal/credential"
	"github.com/wolfeidau/orgtenant/internal/logger"
	"github.com/wolfeidau/orgtenant/internal/store"
	memorystore "github.com/wolfeidau/orgtenant/internal/store/memory"
	mongostore "github.com/wolfeidau/orgtenant/internal/store/mongo"
	postgresstore "github.com/wolfeidau/orgtenant/internal/store/postgres"
	"github.com/wolfeidau/orgtenant/internal/telemetry"
	"github.com/wolfeidau/orgtenant/internal/tenant"
)

type ServerCmd struct {
	// Server configuration
	Listen          string        `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"ORGTENANT_LISTEN"`
	Cert            string        `help:"path to TLS cert file, serves plain HTTP when empty" default:"" env:"ORGTENANT_TLS_CERT"`
	Key             string        `help:"path to TLS key file" default:"" env:"ORGTENANT_TLS_KEY"`
	ShutdownTimeout time.Duration `help:"time allowed for in-flight requests on shutdown" default:"15s" env:"ORGTENANT_SHUTDOWN_TIMEOUT"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins" default:"http://localhost:3000" env:"ORGTENANT_CORS_ORIGINS"`

	// Token configuration
	JWT              JWTFlags `embed:"" prefix:"jwt-"`
	RequireJWTSecret bool     `help:"refuse to start with an empty or default JWT secret" default:"false" env:"REQUIRE_JWT_SECRET"`

	// Telemetry
	Tracing          bool    `help:"enable OpenTelemetry traces and metrics" default:"false" env:"ORGTENANT_TRACING"`
	TraceSampleRatio float64 `help:"fraction of requests traced" default:"1" env:"ORGTENANT_TRACE_SAMPLE_RATIO"`

	// Store configuration
	StoreType     string             `help:"store type (memory, postgres or mongo)" default:"memory" env:"ORGTENANT_STORE_TYPE" enum:"memory,postgres,mongo"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
	MongoStore    MongoStoreFlags    `embed:"" prefix:"mongo-"`
}

type JWTFlags struct {
	Secret    string `help:"HMAC secret used to sign access tokens" default:"change-me-in-prod" env:"JWT_SECRET"`
	Algorithm string `help:"token signing algorithm" default:"HS256" env:"JWT_ALGORITHM" enum:"HS256,HS384,HS512"`
}

// Validate enforces the strict secret policy when it is switched on.
func (j *JWTFlags) Validate(strict bool) error {
	if !strict {
		return nil
	}
	if j.Secret == "" || j.Secret == credential.DefaultSecret {
		return errors.New("JWT_SECRET is not set or uses the default value; set a strong secret or unset REQUIRE_JWT_SECRET")
	}
	return nil
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32         `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`
	ConnectRetry    time.Duration `help:"how long to retry the initial connection" default:"1m"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"true" env:"ORGTENANT_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

type MongoStoreFlags struct {
	URL          string        `help:"MongoDB connection string" default:"mongodb://localhost:27017" env:"MONGO_URL"`
	Database     string        `help:"database holding the master collections and tenant containers" default:"master_db" env:"MASTER_DB_NAME"`
	MaxPoolSize  uint64        `help:"maximum number of pooled connections" default:"50"`
	MinPoolSize  uint64        `help:"minimum number of pooled connections" default:"5"`
	ConnectRetry time.Duration `help:"how long to retry the initial connection" default:"1m"`
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	zerolog.DefaultContextLogger = &log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if err := c.JWT.Validate(c.RequireJWTSecret); err != nil {
		return err
	}
	if c.JWT.Secret == credential.DefaultSecret {
		log.Warn().Msg("Using the default JWT secret. Set JWT_SECRET before running in production")
	}

	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "orgtenant",
			Version:     globals.Version,
			SampleRatio: c.TraceSampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	tenantStore, closeStore, err := c.openStore(ctx, log)
	if err != nil {
		return err
	}
	defer closeStore()

	codec, err := credential.NewTokenCodec(c.JWT.Secret, c.JWT.Algorithm)
	if err != nil {
		return fmt.Errorf("failed to create token codec: %w", err)
	}

	srv := api.NewServer(tenant.NewEngine(tenantStore), auth.NewGateway(tenantStore, codec), tenantStore)

	var handler http.Handler = srv.Routes(log)
	handler = gzhttp.GzipHandler(handler)
	handler = withCORS(c.CORSOrigins, handler)
	if c.Tracing {
		handler = otelhttp.NewHandler(handler, "orgtenant")
	}

	if (c.Cert == "") != (c.Key == "") {
		return errors.New("TLS certificate and key must be provided together (--cert and --key)")
	}

	httpServer := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		if c.Cert != "" {
			log.Info().Str("addr", c.Listen).Str("store", c.StoreType).Msg("Starting HTTPS server")
			errCh <- httpServer.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		log.Info().Str("addr", c.Listen).Str("store", c.StoreType).Msg("Starting HTTP server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", c.ShutdownTimeout).Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	return nil
}

// openStore connects the configured tenant store and prepares its schema.
// The returned close function releases the connection.
func (c *ServerCmd) openStore(ctx context.Context, log zerolog.Logger) (store.TenantStore, func(), error) {
	switch c.StoreType {
	case "postgres":
		if err := c.PostgresStore.Validate(); err != nil {
			return nil, nil, err
		}

		pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
			ConnString:          c.PostgresStore.ConnString,
			MaxConns:            c.PostgresStore.MaxConns,
			MinConns:            c.PostgresStore.MinConns,
			MaxConnLifetime:     c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime:     c.PostgresStore.MaxConnIdleTime,
			ConnectRetryTimeout: c.PostgresStore.ConnectRetry,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}

		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		log.Info().Msg("Using PostgreSQL tenant store")
		return postgresstore.NewTenantStore(pool), pool.Close, nil

	case "mongo":
		client, err := mongostore.Connect(ctx, &mongostore.Config{
			URI:                 c.MongoStore.URL,
			Database:            c.MongoStore.Database,
			MaxPoolSize:         c.MongoStore.MaxPoolSize,
			MinPoolSize:         c.MongoStore.MinPoolSize,
			ConnectRetryTimeout: c.MongoStore.ConnectRetry,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
		}

		closeClient := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				log.Error().Err(err).Msg("Failed to disconnect from mongodb")
			}
		}

		st := mongostore.NewTenantStore(client, c.MongoStore.Database)
		if err := st.EnsureIndexes(ctx); err != nil {
			// Without the indexes uniqueness rests on the pre-checks alone.
			log.Warn().Err(err).Msg("Failed to ensure mongodb indexes")
		}

		log.Info().Str("database", c.MongoStore.Database).Msg("Using MongoDB tenant store")
		return st, closeClient, nil

	default:
		log.Info().Msg("Using in-memory tenant store")
		return memorystore.NewTenantStore(), func() {}, nil
	}
}

// withCORS adds CORS support for browser clients of the JSON API.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Encoding"},
		MaxAge:         300,
	})
	return middleware.Handler(h)
}
