package dbclient

import (
	"context"
	"database/sql/driver"
	"fmt"
	"sync"
)

// Conn is the connection handle both backends lend to the pool. It wraps
// a single driver-level connection together with the dial function that
// created it, so a failed ping can reconnect in place without the handle
// identity changing.
type Conn struct {
	mu     sync.Mutex
	dc     driver.Conn
	redial func(ctx context.Context) (driver.Conn, error)
}

// Exec runs a statement that returns no rows and reports the number of
// affected rows. Arguments go through the driver's prepare path, so they
// work regardless of backend parameter interpolation settings.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stmt, err := c.dc.Prepare(query)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	nvs, err := namedValues(args)
	if err != nil {
		return 0, err
	}

	var res driver.Result
	if sc, ok := stmt.(driver.StmtExecContext); ok {
		res, err = sc.ExecContext(ctx, nvs)
	} else {
		res, err = stmt.Exec(plainValues(nvs))
	}
	if err != nil {
		return 0, err
	}

	n, _ := res.RowsAffected()
	return n, nil
}

// Query runs a statement that returns rows. The caller must Close the
// returned Rows before running anything else on the handle.
func (c *Conn) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stmt, err := c.dc.Prepare(query)
	if err != nil {
		return nil, err
	}

	nvs, err := namedValues(args)
	if err != nil {
		stmt.Close()
		return nil, err
	}

	var rows driver.Rows
	if sq, ok := stmt.(driver.StmtQueryContext); ok {
		rows, err = sq.QueryContext(ctx, nvs)
	} else {
		rows, err = stmt.Query(plainValues(nvs))
	}
	if err != nil {
		stmt.Close()
		return nil, err
	}

	return &Rows{stmt: stmt, rows: rows}, nil
}

// ping probes the connection, redialing in place when the probe fails and
// the server is reachable again.
func (c *Conn) ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.dc.(driver.Pinger); ok {
		if err := p.Ping(ctx); err == nil {
			return nil
		}
	}

	nc, err := c.redial(ctx)
	if err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	c.dc.Close()
	c.dc = nc
	return nil
}

// close tears the connection down for good.
func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dc.Close()
}

// Rows wraps a driver-level result set together with its statement.
type Rows struct {
	stmt driver.Stmt
	rows driver.Rows
}

// Columns returns the result column names.
func (r *Rows) Columns() []string {
	return r.rows.Columns()
}

// Next reads the next row into dest, which must have one entry per
// column. It returns io.EOF when the result set is exhausted.
func (r *Rows) Next(dest []driver.Value) error {
	return r.rows.Next(dest)
}

// Close releases the result set and its statement.
func (r *Rows) Close() error {
	err := r.rows.Close()
	if serr := r.stmt.Close(); err == nil {
		err = serr
	}
	return err
}

func namedValues(args []any) ([]driver.NamedValue, error) {
	nvs := make([]driver.NamedValue, len(args))
	for i, a := range args {
		v, err := driver.DefaultParameterConverter.ConvertValue(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		nvs[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return nvs, nil
}

func plainValues(nvs []driver.NamedValue) []driver.Value {
	vals := make([]driver.Value, len(nvs))
	for i, nv := range nvs {
		vals[i] = nv.Value
	}
	return vals
}
