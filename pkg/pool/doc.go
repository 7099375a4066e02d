// Package pool provides a fixed-capacity pool of reusable database
// connection handles safe for concurrent use by many goroutines. It
// manages the open/closed lifecycle, bounds the number of handles in
// flight with a counting permit, and hands handles between callers
// without ever destroying them on close, so a re-opened pool picks up
// its existing connections after a liveness check.
package pool
