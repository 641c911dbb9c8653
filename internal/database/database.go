// Package database provides PostgreSQL connection management.
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds database connection configuration.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ConnectionString returns the PostgreSQL connection URL. Credentials are
// escaped so passwords may contain reserved characters.
func (c Config) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// Redacted returns the connection URL with the password masked, for logs.
func (c Config) Redacted() string {
	c.Password = "xxxxx"
	return c.ConnectionString()
}

// PoolConfig parses the connection settings into a pgx pool configuration.
func (c Config) PoolConfig() (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(c.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	if c.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(c.MaxOpenConns) //nolint:gosec // bounded by config
	}
	if c.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(c.MaxIdleConns) //nolint:gosec // bounded by config
	}
	if c.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = c.ConnMaxLifetime
	}
	return poolConfig, nil
}

// Connect creates a new database connection pool and verifies it.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
