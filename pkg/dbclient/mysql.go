package dbclient

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"dbpool/pkg/pool"
)

// ER_LOCK_DEADLOCK
const erLockDeadlock = 1213

// MySQL implements pool.Client on top of go-sql-driver/mysql, working at
// the driver-connection level so each pool slot owns exactly one server
// connection and database/sql's internal pooling never gets in the way.
type MySQL struct{}

// NewMySQL returns the MySQL client capability.
func NewMySQL() *MySQL {
	return &MySQL{}
}

// Init performs one-shot library initialization. go-sql-driver/mysql is
// safe for concurrent use and needs no global setup, so the thread-safety
// verification always passes.
func (*MySQL) Init() error { return nil }

// ThreadInit registers the calling goroutine. The MySQL driver keeps no
// per-goroutine state, so there is nothing to do.
func (*MySQL) ThreadInit() {}

// ThreadEnd deregisters the calling goroutine.
func (*MySQL) ThreadEnd() {}

// Connect dials a fresh server connection and applies the requested
// autocommit mode to the session.
func (*MySQL) Connect(ctx context.Context, params pool.ConnectParams) (pool.Handle, error) {
	connector, err := mysql.NewConnector(mysqlConfig(params))
	if err != nil {
		return nil, err
	}

	redial := func(ctx context.Context) (driver.Conn, error) {
		return connector.Connect(ctx)
	}
	dc, err := redial(ctx)
	if err != nil {
		return nil, err
	}

	c := &Conn{dc: dc, redial: redial}
	mode := "0"
	if params.Autocommit {
		mode = "1"
	}
	if _, err := c.Exec(ctx, "SET autocommit="+mode); err != nil {
		c.close()
		return nil, fmt.Errorf("set autocommit: %w", err)
	}
	return c, nil
}

// Ping probes the handle, reconnecting it in place when the server is
// reachable again.
func (*MySQL) Ping(ctx context.Context, h pool.Handle) error {
	c, err := asConn(h)
	if err != nil {
		return err
	}
	return c.ping(ctx)
}

// Close tears down the handle.
func (*MySQL) Close(h pool.Handle) {
	if c, err := asConn(h); err == nil {
		c.close()
	}
}

// mysqlConfig maps the pool's connect parameters onto the driver config.
func mysqlConfig(params pool.ConnectParams) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = params.User
	cfg.Passwd = params.Password
	cfg.DBName = params.Database

	if params.UnixSocket != "" {
		cfg.Net = "unix"
		cfg.Addr = params.UnixSocket
	} else {
		port := params.Port
		if port == 0 {
			port = 3306
		}
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(params.Host, strconv.Itoa(port))
	}

	cfg.CheckConnLiveness = true
	cfg.ClientFoundRows = params.Flags&pool.FlagFoundRows != 0
	cfg.MultiStatements = params.Flags&pool.FlagMultiStatements != 0
	cfg.InterpolateParams = params.Flags&pool.FlagInterpolateParams != 0
	cfg.ParseTime = params.Flags&pool.FlagParseTime != 0
	return cfg
}

// IsDeadlock reports whether err is a MySQL deadlock (ER_LOCK_DEADLOCK),
// the one error class a consumer typically retries after a short random
// backoff.
func IsDeadlock(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == erLockDeadlock
}

func asConn(h pool.Handle) (*Conn, error) {
	c, ok := h.(*Conn)
	if !ok || c == nil {
		return nil, fmt.Errorf("%w: unexpected handle type %T", pool.ErrInvalidHandle, h)
	}
	return c, nil
}
