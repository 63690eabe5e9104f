//go:build cgo_sqlite

package store

import (
	sqliteexternal "github.com/FocuswithJustin/JuniperHelps/contrib/sqlite-external"
)

const (
	driverName = sqliteexternal.DriverName
	driverType = "cgo"
)
