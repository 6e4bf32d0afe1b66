package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facilitydirectory/pkg/config"
	"github.com/zatekoja/facilitydirectory/pkg/retry"
)

// Client represents a PostgreSQL database client
type Client struct {
	db   *sql.DB
	name string
}

// NewClient creates a new PostgreSQL client with exponential backoff retry.
// name labels log lines so the facility store and the upstream extract can be
// told apart.
func NewClient(ctx context.Context, name string, cfg *config.DatabaseConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", name, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	retryConfig := retry.DefaultConfig()
	retryConfig.OnRetry = func(attempt int, err error, nextDelay time.Duration) {
		log.Warn().Err(err).
			Str("database", name).
			Int("attempt", attempt).
			Dur("next_delay", nextDelay).
			Msg("PostgreSQL connection attempt failed")
	}
	err = retry.Do(ctx, retryConfig, name, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s after retries: %w", name, err)
	}

	log.Info().Str("database", name).Str("host", cfg.Host).Msg("Connected to PostgreSQL")
	return &Client{db: db, name: name}, nil
}

// NewFromDB wraps an existing handle
func NewFromDB(db *sql.DB) *Client {
	return &Client{db: db, name: "postgres"}
}

// DB returns the underlying database connection
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// BeginTx starts a new transaction
func (c *Client) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, nil)
}

// Ping verifies the connection to the database
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
