package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/viper"
)

const connectTimeout = 15 * time.Second

// Conn is an interface that works with both pgxpool.Pool and pgx.Tx
type Conn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Client represents a Postgres client.
type Client struct {
	pool *pgxpool.Pool
}

// Pool returns the underlying connection pool.
func (p *Client) Pool() *pgxpool.Pool {
	return p.pool
}

// Close closes the database connection for graceful shutdown.
func (p *Client) Close() {
	p.pool.Close()
}

// MustNewClient connects to Postgres and applies pending migrations.
func MustNewClient() *Client {
	config, err := pgxpool.ParseConfig(dsn())
	if err != nil {
		panic(err)
	}

	if v := viper.GetInt32("postgres.max_conns"); v > 0 {
		config.MaxConns = v
	}
	if v := viper.GetInt32("postgres.min_conns"); v > 0 {
		config.MinConns = v
	}
	if v := viper.GetInt("postgres.max_conn_idle_seconds"); v > 0 {
		config.MaxConnIdleTime = time.Duration(v) * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		panic(err)
	}
	if err := pool.Ping(ctx); err != nil {
		panic(fmt.Sprintf("Failed to reach Postgres at %s: %v", config.ConnConfig.Host, err))
	}

	if err := migrate(pool, viper.GetString("postgres.migrations_path")); err != nil {
		panic(err)
	}

	slog.Info("Postgres connected", "host", config.ConnConfig.Host, "db", config.ConnConfig.Database)

	return &Client{
		pool: pool,
	}
}

func dsn() string {
	port := os.Getenv("FULFILLMENT_PG_PORT")
	if port == "" {
		port = "5432"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("FULFILLMENT_PG_HOST"),
		port,
		os.Getenv("FULFILLMENT_PG_USER"),
		os.Getenv("FULFILLMENT_PG_PASSWORD"),
		os.Getenv("FULFILLMENT_PG_DB"),
	)
}

func migrate(pool *pgxpool.Pool, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.Up(db, dir); err != nil && !errors.Is(err, goose.ErrNoNextVersion) {
		return fmt.Errorf("failed to apply migrations from %s: %w", dir, err)
	}

	return nil
}
