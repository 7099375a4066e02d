package pool

import (
	"fmt"
	"time"
)

// Default configuration values
const (
	DefaultCapacity        = 8                // connection handles in the pool
	DefaultSlotLockTimeout = 30 * time.Second // bounded wait for the slot table lock
)

// Config holds the pool sizing and timing knobs.
type Config struct {
	// Capacity is the fixed number of slots. It cannot change after New.
	Capacity int

	// SlotLockTimeout bounds how long Acquire waits for the slot table
	// lock after it already holds a permit.
	SlotLockTimeout time.Duration
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:        DefaultCapacity,
		SlotLockTimeout: DefaultSlotLockTimeout,
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("pool capacity must be at least 1, got %d", c.Capacity)
	}
	if c.SlotLockTimeout <= 0 {
		return fmt.Errorf("slot lock timeout must be positive, got %v", c.SlotLockTimeout)
	}
	return nil
}
