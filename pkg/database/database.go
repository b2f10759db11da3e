// Package database opens the audit ledger's SQL connection. Postgres is used in production and
// SQLite for local runs and tests.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Client holds the ledger database handle
type Client struct {
	DB     *sql.DB
	Driver string
}

// Options tune the connection. The zero value uses a small pool and leaves sslmode untouched.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// SSLMode and SSLRootCert apply to Postgres only.
	SSLMode     string
	SSLRootCert string
}

func (o Options) withDefaults(driver string) Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 10
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = 2
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 5 * time.Minute
	}
	if driver == DriverSQLite {
		// one writer; and every :memory: connection would be a separate database
		o.MaxOpenConns, o.MaxIdleConns = 1, 1
	}
	return o
}

// ParseURL splits a database URL into a database/sql driver name and DSN.
// postgres:// and postgresql:// use lib/pq; sqlite3://path and sqlite3::memory: use go-sqlite3.
func ParseURL(databaseURL string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DriverPostgres, databaseURL, nil
	case strings.HasPrefix(databaseURL, "sqlite3://"):
		return DriverSQLite, strings.TrimPrefix(databaseURL, "sqlite3://"), nil
	case strings.HasPrefix(databaseURL, "sqlite3:"):
		return DriverSQLite, strings.TrimPrefix(databaseURL, "sqlite3:"), nil
	default:
		return "", "", fmt.Errorf("unsupported database URL scheme: %q", redact(databaseURL))
	}
}

// postgresDSN sets sslmode and sslrootcert on a Postgres URL, overriding any values already present.
func postgresDSN(raw string, opts Options) (string, error) {
	if opts.SSLMode == "" && opts.SSLRootCert == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse database URL: %w", err)
	}
	q := u.Query()
	if opts.SSLMode != "" {
		q.Set("sslmode", opts.SSLMode)
	}
	if opts.SSLRootCert != "" {
		q.Set("sslrootcert", opts.SSLRootCert)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// NewClient opens and pings the ledger database.
func NewClient(ctx context.Context, databaseURL string, opts Options) (*Client, error) {
	driver, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return nil, err
	}
	if driver == DriverPostgres {
		if dsn, err = postgresDSN(dsn, opts); err != nil {
			return nil, err
		}
	}
	opts = opts.withDefaults(driver)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed opening connection to %s: %w", driver, err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed connecting to %s: %w", driver, err)
	}

	log.Printf("✅ Ledger database connected (driver: %s, max_open: %d)", driver, opts.MaxOpenConns)
	return &Client{DB: db, Driver: driver}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.DB.Close()
}

// Ping checks if the database is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
