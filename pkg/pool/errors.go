package pool

import "errors"

// Fatal errors. Once one of these is recorded the pool is permanently
// unusable for the rest of the process lifetime.
var (
	// ErrNotThreadSafe is returned when the underlying client library
	// reports it cannot be used from multiple threads
	ErrNotThreadSafe = errors.New("database library is not thread-safe")

	// ErrInitFailed is returned when one-shot client library initialization fails
	ErrInitFailed = errors.New("failed to initialize the database library")
)

// Usage errors. These indicate the caller is holding the pool wrong.
var (
	// ErrNotInitialized is returned when operating on a pool that was never opened
	ErrNotInitialized = errors.New("pool is not initialized")

	// ErrNotOpen is returned when the pool is closed or has lost connectivity
	ErrNotOpen = errors.New("pool is not open")

	// ErrInvalidHandle is returned when a nil handle is passed to Release or Ping
	ErrInvalidHandle = errors.New("invalid connection handle")
)

// Transient errors. The caller may retry Open or treat the pool as degraded.
var (
	// ErrConnect is returned when a fresh connection attempt fails during Open
	ErrConnect = errors.New("cannot connect to the database")

	// ErrReconnect is returned when a liveness ping of a reused handle fails during Open
	ErrReconnect = errors.New("cannot reconnect to the database")

	// ErrPingFailed is returned when a caller-requested ping fails
	ErrPingFailed = errors.New("database ping was not successful")

	// ErrLockTimeout is returned when the slot table lock cannot be taken in time
	ErrLockTimeout = errors.New("cannot acquire the slot table lock")
)

// Invariant violations. These signal a defect in the pool itself and are
// never expected under correct usage; they are logged loudly when hit.
var (
	// ErrNoFreeSlot is returned when a permit was granted but no free slot exists
	ErrNoFreeSlot = errors.New("no free slot found despite a granted permit, this is a bug")

	// ErrNoBusySlot is returned when Release finds no slot checked out
	ErrNoBusySlot = errors.New("no busy slot found on release, this is a bug")
)
