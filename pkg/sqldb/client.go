// Package sqldb opens the destination database (PostgreSQL through lib/pq or
// an embedded SQLite file through modernc.org/sqlite) and provides scoped
// transaction helpers shared by the persister.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/config"
)

type Client struct {
	DB     *sql.DB
	driver string
}

// New opens a connection pool for the configured driver and verifies it
// with a ping.
func New(cfg *config.Config) (*Client, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err = sql.Open("postgres", cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("opening postgres connection: %w", err)
		}
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	case config.DriverSQLite:
		return OpenSQLite(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db, driver: config.DriverPostgres}, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file. The pool is
// limited to one connection since SQLite serializes writers anyway.
func OpenSQLite(path string) (*Client, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring sqlite: %w", err)
	}
	return &Client{DB: db, driver: config.DriverSQLite}, nil
}

// Driver returns the driver name the client was opened with.
func (c *Client) Driver() string {
	return c.driver
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// QuoteIdent quotes a table or column name for the active dialect.
func (c *Client) QuoteIdent(name string) string {
	if c.driver == config.DriverPostgres {
		return pq.QuoteIdentifier(name)
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Placeholder returns the bind parameter for the n-th (1-based) argument.
func (c *Client) Placeholder(n int) string {
	if c.driver == config.DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// InTx runs fn inside a transaction, committing on success and rolling back
// when fn or the commit fails.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
