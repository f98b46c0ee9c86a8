// Package db holds the SQL migrations embedded into the binary.
package db

import "embed"

//go:embed pg/*.sql
var Postgres embed.FS

// PostgresDir is the directory of Postgres inside the embedded filesystem.
const PostgresDir = "pg"
