//go:build !cgo_sqlite

package store

import (
	_ "modernc.org/sqlite" // registers "sqlite"
)

const (
	driverName = "sqlite"
	driverType = "purego"
)
