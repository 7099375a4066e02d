package dbclient

import (
	"fmt"
	"strings"

	"dbpool/pkg/config"
	"dbpool/pkg/pool"
)

// New returns the client capability for the configured database backend.
func New(cfg config.DatabaseConfig) (pool.Client, error) {
	switch cfg.Type {
	case "mysql", "":
		return NewMySQL(), nil
	case "sqlite":
		return NewSQLite(), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// Params converts database configuration into the explicit connect
// parameters the pool passes through to Client.Connect.
func Params(cfg config.DatabaseConfig) pool.ConnectParams {
	return pool.ConnectParams{
		Host:       cfg.Host,
		User:       cfg.User,
		Password:   cfg.Password,
		Database:   cfg.Database,
		Port:       cfg.Port,
		UnixSocket: cfg.UnixSocket,
		Flags:      parseFlags(cfg.Flags),
		Autocommit: cfg.Autocommit,
	}
}

// parseFlags maps config flag names onto the client flag bits. Unknown
// names are rejected by config validation before this runs.
func parseFlags(names []string) uint32 {
	var flags uint32
	for _, name := range names {
		switch strings.ToLower(name) {
		case "found_rows":
			flags |= pool.FlagFoundRows
		case "multi_statements":
			flags |= pool.FlagMultiStatements
		case "interpolate_params":
			flags |= pool.FlagInterpolateParams
		case "parse_time":
			flags |= pool.FlagParseTime
		}
	}
	return flags
}
