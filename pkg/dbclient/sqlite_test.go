package dbclient

import (
	"context"
	"database/sql/driver"
	"io"
	"path/filepath"
	"testing"
	"time"

	"dbpool/pkg/pool"
)

func newSQLitePool(t *testing.T, capacity int) (*pool.Pool, pool.ConnectParams) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "pool.db")
	p, err := pool.New(NewSQLite(), pool.Config{Capacity: capacity, SlotLockTimeout: time.Second})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	params := pool.ConnectParams{Database: dbPath, Autocommit: true}
	if err := p.Open(context.Background(), params); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return p, params
}

func TestSQLitePoolEndToEnd(t *testing.T) {
	ctx := context.Background()
	p, params := newSQLitePool(t, 2)
	defer p.Close()

	h, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	conn := h.(*Conn)

	if _, err := conn.Exec(ctx, "CREATE TABLE example (id INTEGER PRIMARY KEY, name TEXT)"); err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}
	n, err := conn.Exec(ctx, "INSERT INTO example (name) VALUES (?)", "example")
	if err != nil {
		t.Fatalf("INSERT failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 affected row, got %d", n)
	}

	rows, err := conn.Query(ctx, "SELECT name FROM example WHERE id = ?", 1)
	if err != nil {
		t.Fatalf("SELECT failed: %v", err)
	}
	cols := rows.Columns()
	if len(cols) != 1 || cols[0] != "name" {
		t.Errorf("Unexpected columns: %v", cols)
	}
	dest := make([]driver.Value, 1)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got, ok := dest[0].(string); !ok || got != "example" {
		t.Errorf("Unexpected row value: %v", dest[0])
	}
	if err := rows.Next(dest); err != io.EOF {
		t.Errorf("Expected io.EOF after the last row, got %v", err)
	}
	if err := rows.Close(); err != nil {
		t.Errorf("Rows close failed: %v", err)
	}

	if err := p.Ping(ctx, h); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
	if err := p.Release(h); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	// Re-open reuses the existing handles; the table is still there.
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := p.Open(ctx, params); err != nil {
		t.Fatalf("Re-open failed: %v", err)
	}

	h, err = p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire after re-open failed: %v", err)
	}
	rows, err = h.(*Conn).Query(ctx, "SELECT COUNT(*) FROM example")
	if err != nil {
		t.Fatalf("COUNT failed: %v", err)
	}
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got, ok := dest[0].(int64); !ok || got != 1 {
		t.Errorf("Expected count 1, got %v", dest[0])
	}
	rows.Close()
	p.Release(h)
}

func TestSQLiteDistinctHandles(t *testing.T) {
	ctx := context.Background()
	p, _ := newSQLitePool(t, 2)
	defer p.Close()

	h1, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	h2, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if h1 == h2 {
		t.Error("Slots must hold distinct connections")
	}
	p.Release(h1)
	p.Release(h2)
}
