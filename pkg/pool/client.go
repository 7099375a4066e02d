package pool

import "context"

// Handle is an opaque connection handle owned by the client library.
// The pool lends handles out and takes them back; it never inspects them.
type Handle = any

// Client flag bits understood by the MySQL-backed client. The pool passes
// them through ConnectParams without interpreting them.
const (
	FlagFoundRows uint32 = 1 << iota
	FlagMultiStatements
	FlagInterpolateParams
	FlagParseTime
)

// ConnectParams carries the connection settings handed to Client.Connect
// for every slot. Configuration is explicit; the pool never reads the
// environment.
type ConnectParams struct {
	Host       string
	User       string
	Password   string
	Database   string
	Port       int
	UnixSocket string // when set, connect over a unix socket instead of TCP
	Flags      uint32
	Autocommit bool
}

// Client is the capability surface the pool requires from the underlying
// database client library. Implementations must be safe for concurrent use.
type Client interface {
	// Init performs one-shot library initialization. It must verify the
	// library is safe for concurrent use and return ErrNotThreadSafe when
	// it is not. The pool calls it exactly once, on the first Open.
	Init() error

	// ThreadInit registers the calling goroutine with the client library.
	// ThreadEnd deregisters it. Libraries without per-thread state
	// implement both as no-ops.
	ThreadInit()
	ThreadEnd()

	// Connect establishes a fresh connection. The returned handle must be
	// usable until Close is called on it, surviving pool close/open cycles.
	Connect(ctx context.Context, params ConnectParams) (Handle, error)

	// Ping probes a handle for liveness. Implementations are expected to
	// reconnect a lost handle in place when the server is reachable, so a
	// successful Ping always leaves the handle usable.
	Ping(ctx context.Context, h Handle) error

	// Close tears down a handle. Only called by the pool when an Open
	// attempt fails part-way and its freshly connected handles are abandoned.
	Close(h Handle)
}
