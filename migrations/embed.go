// Package migrations embeds the SQL schema applied by scripts/migrate.
package migrations

import "embed"

// FS holds the *.up.sql files.
//
//go:embed *.up.sql
var FS embed.FS
