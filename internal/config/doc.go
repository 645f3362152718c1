// Package config handles configuration loading for the parley datastore.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	database:
//	  dsn: "${PARLEY_DATABASE_DSN}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Configuration Sections
//
// Database backend selection (the only thing that differs between the two
// storage backends is this section):
//
//	database:
//	  backend: "sqlite"            # sqlite or postgres
//	  path: "data/parley.db"       # sqlite only
//	  dsn: "${PARLEY_DATABASE_DSN}" # postgres only
//	  query_timeout: "5s"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax (ns, us, ms, s, m, h).
package config
