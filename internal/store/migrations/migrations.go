// ABOUTME: Embedded goose migrations for both storage backends
// ABOUTME: One dialect directory each for SQLite and Postgres

package migrations

import (
	"embed"
	"io/fs"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// SQLite returns the migration set for the embedded backend.
func SQLite() fs.FS {
	sub, err := fs.Sub(files, "sqlite")
	if err != nil {
		panic(err) // embed layout is fixed at build time
	}
	return sub
}

// Postgres returns the migration set for the client-server backend.
func Postgres() fs.FS {
	sub, err := fs.Sub(files, "postgres")
	if err != nil {
		panic(err)
	}
	return sub
}
