package db

import "embed"

// EmbedMigrations contains the embedded SQL migration files: the Postgres
// dataset schema and the SQLite answer log schema.
//
//go:embed migrations/postgres/*.sql migrations/audit/*.sql
var EmbedMigrations embed.FS
