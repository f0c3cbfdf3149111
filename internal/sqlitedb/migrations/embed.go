// Package migrations embeds the SQL migrations for the studyrag database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
