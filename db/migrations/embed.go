// Package dbmigrations exposes embedded SQL migrations for trading-board binaries.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations bundled into trading-board binaries.
//
//go:embed *.sql
var Files embed.FS
