// Package sqliteexternal registers the CGO SQLite driver used by the package
// snapshot store when built with the cgo_sqlite tag.
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./cmd/helps
//
// Without the tag the store links modernc.org/sqlite and needs no C toolchain.
package sqliteexternal
