package dbclient

import (
	"context"
	"database/sql/driver"

	"github.com/mattn/go-sqlite3"

	"dbpool/pkg/pool"
)

// SQLite implements pool.Client on top of mattn/go-sqlite3. It exists so
// the pool can be exercised end to end without a running MySQL server;
// ConnectParams.Database is the database file path or a file: DSN.
//
// Use a file-backed database (or a file::memory:?cache=shared DSN) when
// pooling more than one handle; a plain :memory: DSN gives every slot its
// own private database.
type SQLite struct {
	driver *sqlite3.SQLiteDriver
}

// NewSQLite returns the SQLite client capability.
func NewSQLite() *SQLite {
	return &SQLite{driver: &sqlite3.SQLiteDriver{}}
}

// Init performs one-shot library initialization. The sqlite3 driver is
// compiled in serialized threading mode and is safe for concurrent use.
func (*SQLite) Init() error { return nil }

// ThreadInit registers the calling goroutine; a no-op for SQLite.
func (*SQLite) ThreadInit() {}

// ThreadEnd deregisters the calling goroutine.
func (*SQLite) ThreadEnd() {}

// Connect opens a database connection. The autocommit parameter is
// ignored: SQLite connections are always in autocommit mode outside an
// explicit transaction.
func (s *SQLite) Connect(_ context.Context, params pool.ConnectParams) (pool.Handle, error) {
	dsn := params.Database
	redial := func(context.Context) (driver.Conn, error) {
		return s.driver.Open(dsn)
	}
	dc, err := redial(context.Background())
	if err != nil {
		return nil, err
	}
	return &Conn{dc: dc, redial: redial}, nil
}

// Ping probes the handle, reopening the database when the probe fails.
func (*SQLite) Ping(ctx context.Context, h pool.Handle) error {
	c, err := asConn(h)
	if err != nil {
		return err
	}
	return c.ping(ctx)
}

// Close tears down the handle.
func (*SQLite) Close(h pool.Handle) {
	if c, err := asConn(h); err == nil {
		c.close()
	}
}
