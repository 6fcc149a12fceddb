package runstore

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
)

//go:embed migrations
var migrationsFS embed.FS

// DevMode makes Migrations read SQL files from the working tree
// instead of the compiled-in copy, so schema edits take effect
// without a rebuild.
var DevMode = false

const devMigrationsDir = "internal/runstore/migrations"

// Migrations returns the migration source for this build.
func Migrations() (fs.FS, error) {
	if DevMode {
		if _, err := os.Stat(devMigrationsDir); err != nil {
			return nil, fmt.Errorf("dev migrations dir: %w", err)
		}
		return os.DirFS(devMigrationsDir), nil
	}
	return fs.Sub(migrationsFS, "migrations")
}
