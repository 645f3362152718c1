// ABOUTME: Config-driven backend selection
// ABOUTME: Opens the SQLite or Postgres store depending on configuration

package store

import (
	"fmt"

	"github.com/parleyhq/parley/internal/config"
)

// Open creates the store named by cfg.Backend. Callers see the same Store
// contract either way; only connection configuration differs.
func Open(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		if cfg.QueryTimeout > 0 {
			s.timeout = cfg.QueryTimeout
		}
		return s, nil
	case config.BackendPostgres:
		s, err := NewPostgresStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.QueryTimeout > 0 {
			s.timeout = cfg.QueryTimeout
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Backend)
	}
}
