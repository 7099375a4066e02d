// Package dbclient provides the database client capabilities consumed by
// pkg/pool: a MySQL backend built on go-sql-driver/mysql and a SQLite
// backend built on mattn/go-sqlite3, both operating on raw driver
// connections so the pool owns exactly one connection per slot. It also
// carries the consumer-side query helpers on the handle type; the pool
// itself never executes queries.
package dbclient
