// Package store persists assembled package snapshots in SQLite so a restart
// does not have to refetch everything.
//
// Payloads are JSON, compressed with xz. The BLAKE3 digest of the
// uncompressed JSON is stored beside each row and verified on read.
//
// Build modes:
//   - Default: pure Go modernc.org/sqlite
//   - -tags cgo_sqlite: mattn/go-sqlite3 via contrib/sqlite-external
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/logging"
)

const schema = `CREATE TABLE IF NOT EXISTS packages (
	key        TEXT PRIMARY KEY,
	fetched_at INTEGER NOT NULL,
	digest     TEXT NOT NULL,
	payload    BLOB NOT NULL
)`

// Store is a SQLite-backed snapshot table. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	path   string
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for fetched_at and age checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open opens (creating if needed) the snapshot database at path.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Component(logging.OrDefault(s.logger), "store")

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.NewIO("create schema", path, err)
	}
	s.db = db
	s.logger.Debug("snapshot store opened", "path", path, "driver", driverType)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver reports the linked SQLite implementation ("purego" or "cgo").
func Driver() string {
	return driverType
}

// Digest returns the hex BLAKE3 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Put stores v under key, replacing any previous snapshot.
func (s *Store) Put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", key, err)
	}

	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("creating xz writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("compressing snapshot %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("compressing snapshot %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO packages (key, fetched_at, digest, payload) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET fetched_at = excluded.fetched_at, digest = excluded.digest, payload = excluded.payload`,
		key, s.now().UnixMilli(), Digest(data), buf.Bytes())
	if err != nil {
		return errors.NewIO("write", s.path, err)
	}
	s.logger.Debug("snapshot stored", "key", key, "bytes", len(data), "compressed", buf.Len())
	return nil
}

// Get decodes the snapshot under key into v and returns when it was stored.
// A missing snapshot, or one older than maxAge (when maxAge > 0), is a
// NotFoundError. A snapshot whose digest does not match is deleted and
// reported as a ParseError.
func (s *Store) Get(ctx context.Context, key string, maxAge time.Duration, v any) (time.Time, error) {
	var (
		fetchedMs int64
		digest    string
		payload   []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT fetched_at, digest, payload FROM packages WHERE key = ?`, key).
		Scan(&fetchedMs, &digest, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, errors.NewNotFound("snapshot", key)
	}
	if err != nil {
		return time.Time{}, errors.NewIO("read", s.path, err)
	}

	fetchedAt := time.UnixMilli(fetchedMs)
	if maxAge > 0 && s.now().Sub(fetchedAt) > maxAge {
		return fetchedAt, &errors.NotFoundError{Resource: "snapshot", ID: key, Err: fmt.Errorf("stale since %s", fetchedAt.Add(maxAge).Format(time.RFC3339))}
	}

	r, err := xz.NewReader(bytes.NewReader(payload))
	if err != nil {
		return fetchedAt, s.corrupt(ctx, key, err.Error())
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fetchedAt, s.corrupt(ctx, key, err.Error())
	}
	if Digest(data) != digest {
		return fetchedAt, s.corrupt(ctx, key, "digest mismatch")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fetchedAt, s.corrupt(ctx, key, err.Error())
	}
	return fetchedAt, nil
}

func (s *Store) corrupt(ctx context.Context, key, reason string) error {
	s.logger.Warn("discarding corrupt snapshot", "key", key, "reason", reason)
	if err := s.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete corrupt snapshot", "key", key, "error", err)
	}
	return errors.NewParse("snapshot", key, reason)
}

// Delete removes the snapshot under key. Deleting a missing key is not an
// error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM packages WHERE key = ?`, key); err != nil {
		return errors.NewIO("delete", s.path, err)
	}
	return nil
}

// Prune deletes snapshots older than maxAge and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().Add(-maxAge).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM packages WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, errors.NewIO("prune", s.path, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Entry describes one stored snapshot.
type Entry struct {
	Key       string    `json:"key"`
	FetchedAt time.Time `json:"fetchedAt"`
	Digest    string    `json:"digest"`
	Size      int       `json:"size"`
}

// List returns every stored snapshot ordered by key.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, fetched_at, digest, length(payload) FROM packages ORDER BY key`)
	if err != nil {
		return nil, errors.NewIO("list", s.path, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			ms int64
		)
		if err := rows.Scan(&e.Key, &ms, &e.Digest, &e.Size); err != nil {
			return nil, errors.NewIO("list", s.path, err)
		}
		e.FetchedAt = time.UnixMilli(ms)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIO("list", s.path, err)
	}
	return entries, nil
}
