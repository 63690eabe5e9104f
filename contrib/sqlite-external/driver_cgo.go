//go:build cgo_sqlite

package sqliteexternal

import (
	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
)

// DriverName is the database/sql name registered by mattn/go-sqlite3.
const DriverName = "sqlite3"
