package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
)

type snapshot struct {
	Book  string            `json:"book"`
	Slots map[string]string `json:"slots"`
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func openTest(t *testing.T, c *clock) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "helps.db"), WithClock(c.now))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := openTest(t, c)

	in := snapshot{Book: "JON", Slots: map[string]string{"ult": "en_ult", "tn": "en_tn"}}
	if err := s.Put(ctx, "unfoldingWord/en/JON", in); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var out snapshot
	fetched, err := s.Get(ctx, "unfoldingWord/en/JON", time.Hour, &out)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !fetched.Equal(c.t) {
		t.Errorf("fetchedAt = %v, want %v", fetched, c.t)
	}
	if out.Book != "JON" || out.Slots["tn"] != "en_tn" {
		t.Errorf("snapshot = %+v", out)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTest(t, &clock{t: time.Now()})
	var out snapshot
	_, err := s.Get(context.Background(), "nope", 0, &out)
	if !errors.IsNotFound(err) {
		t.Errorf("Get() error = %v, want not found", err)
	}
}

func TestGetStale(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := openTest(t, c)
	if err := s.Put(ctx, "k", snapshot{Book: "JON"}); err != nil {
		t.Fatal(err)
	}

	c.t = c.t.Add(2 * time.Hour)
	var out snapshot
	if _, err := s.Get(ctx, "k", time.Hour, &out); !errors.IsNotFound(err) {
		t.Errorf("stale Get() error = %v, want not found", err)
	}
	if _, err := s.Get(ctx, "k", 0, &out); err != nil {
		t.Errorf("Get() without max age error = %v", err)
	}
}

func TestPutReplaces(t *testing.T) {
	ctx := context.Background()
	s := openTest(t, &clock{t: time.Now()})
	s.Put(ctx, "k", snapshot{Book: "JON"})
	s.Put(ctx, "k", snapshot{Book: "RUT"})

	var out snapshot
	if _, err := s.Get(ctx, "k", 0, &out); err != nil || out.Book != "RUT" {
		t.Errorf("Get() = %+v, %v", out, err)
	}
	entries, err := s.List(ctx)
	if err != nil || len(entries) != 1 {
		t.Errorf("List() = %+v, %v", entries, err)
	}
}

func TestDigestMismatchDiscardsRow(t *testing.T) {
	ctx := context.Background()
	s := openTest(t, &clock{t: time.Now()})
	s.Put(ctx, "k", snapshot{Book: "JON"})

	if _, err := s.db.ExecContext(ctx, `UPDATE packages SET digest = 'bad' WHERE key = 'k'`); err != nil {
		t.Fatal(err)
	}

	var out snapshot
	_, err := s.Get(ctx, "k", 0, &out)
	var pe *errors.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Get() error = %v, want ParseError", err)
	}
	if _, err := s.Get(ctx, "k", 0, &out); !errors.IsNotFound(err) {
		t.Errorf("corrupt row should be deleted, got %v", err)
	}
}

func TestDeleteAndPrune(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	s := openTest(t, c)

	s.Put(ctx, "old", snapshot{})
	c.t = c.t.Add(48 * time.Hour)
	s.Put(ctx, "new", snapshot{})
	s.Put(ctx, "gone", snapshot{})

	if err := s.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "gone"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}

	n, err := s.Prune(ctx, 24*time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("Prune() = %d, %v; want 1", n, err)
	}
	entries, _ := s.List(ctx)
	if len(entries) != 1 || entries[0].Key != "new" || entries[0].Digest == "" || entries[0].Size == 0 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestDigest(t *testing.T) {
	a, b := Digest([]byte("jonah")), Digest([]byte("jonah"))
	if a != b || len(a) != 64 {
		t.Errorf("Digest() = %q, %q", a, b)
	}
	if a == Digest([]byte("ruth")) {
		t.Error("different input should have a different digest")
	}
}
