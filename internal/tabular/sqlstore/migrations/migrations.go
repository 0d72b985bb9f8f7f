// Package migrations embeds the schema of the SQL row store, one directory
// per dialect.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS
