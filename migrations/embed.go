// Package migrations compiles the bridge's SQL migration files into the
// binary, so a deployment needs nothing on disk beyond the executable
// and its config.
package migrations

import (
	"embed"

	"github.com/quietlawn/rachio-bridge/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS = files
	database.MigrationsDir = "."
}
