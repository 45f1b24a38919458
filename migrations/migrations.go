// Package migrations holds the postgres schema of the exam mirror.
package migrations

import "embed"

// FS contains the numbered up/down migration files.
//
//go:embed *.sql
var FS embed.FS
