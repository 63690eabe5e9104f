package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/bookpkg"
	"github.com/FocuswithJustin/JuniperHelps/internal/resource"
)

func waitForStatus(t *testing.T, store *JobStore, id string, want JobStatus) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := store.Get(id)
		if !ok {
			t.Fatalf("job %s disappeared", id)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := store.Get(id)
	t.Fatalf("job %s status = %s, want %s", id, job.Status, want)
	return Job{}
}

func fakePackage(ctx context.Context, book string) (*bookpkg.Package, error) {
	return &bookpkg.Package{
		Book:  book,
		Slots: map[resource.Type]bookpkg.Slot{resource.ULT: {Type: resource.ULT, Path: "32-JON.usfm", RawContent: "\\id JON"}},
	}, nil
}

func TestJobStoreCreateAndList(t *testing.T) {
	store := NewJobStore()
	a := store.Create("JON")
	b := store.Create("RUT")

	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("job IDs should be unique: %q %q", a.ID, b.ID)
	}
	if a.Status != JobStatusPending {
		t.Errorf("status = %s, want pending", a.Status)
	}
	if got := store.List(); len(got) != 2 {
		t.Errorf("List() = %d jobs, want 2", len(got))
	}
	if _, ok := store.Get("missing"); ok {
		t.Error("Get(missing) should report false")
	}
}

func TestRunJobCompletes(t *testing.T) {
	store := NewJobStore()
	job := store.Create("JON")
	store.Run(job, fakePackage, nil)

	done := waitForStatus(t, store, job.ID, JobStatusCompleted)
	if done.Progress != 100 || done.CompletedAt == "" {
		t.Errorf("job = %+v", done)
	}
	if done.Result == nil || len(done.Result.Types) != 1 || done.Result.Slots[resource.ULT].Size != 7 {
		t.Errorf("result = %+v", done.Result)
	}
}

func TestRunJobFails(t *testing.T) {
	store := NewJobStore()
	job := store.Create("JON")
	store.Run(job, func(ctx context.Context, book string) (*bookpkg.Package, error) {
		return nil, errors.NewNotFound("repository", "en_ult")
	}, nil)

	failed := waitForStatus(t, store, job.ID, JobStatusFailed)
	if failed.Error == "" {
		t.Error("failed job should record its error")
	}
}

func TestRunJobCancellation(t *testing.T) {
	store := NewJobStore()
	job := store.Create("JON")
	started := make(chan struct{})
	store.Run(job, func(ctx context.Context, book string) (*bookpkg.Package, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}, nil)

	<-started
	if err := store.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	cancelled := waitForStatus(t, store, job.ID, JobStatusCancelled)
	if cancelled.CompletedAt == "" {
		t.Error("cancelled job should be stamped")
	}

	// A finished job cannot be cancelled again and the worker cannot
	// overwrite the cancellation.
	if err := store.Cancel(job.ID); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("second Cancel() error = %v, want invalid input", err)
	}
	if err := store.Cancel("missing"); !errors.IsNotFound(err) {
		t.Errorf("Cancel(missing) error = %v, want not found", err)
	}
}

func TestJobEndpoints(t *testing.T) {
	ts := newTestServer(t, Config{}, nil)

	body := `{"book":"jon"}`
	status, env := do(t, ts, http.MethodPost, "/jobs", &body)
	if status != http.StatusAccepted {
		t.Fatalf("POST /jobs = %d %+v", status, env.Error)
	}
	var created Job
	json.Unmarshal(env.Data, &created)
	if created.ID == "" || created.Book != "JON" {
		t.Fatalf("created = %+v", created)
	}

	deadline := time.Now().Add(5 * time.Second)
	var job Job
	for time.Now().Before(deadline) {
		_, env = get(t, ts, "/jobs/"+created.ID)
		json.Unmarshal(env.Data, &job)
		if job.Status.finished() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if job.Status != JobStatusCompleted || job.Result == nil || len(job.Result.Types) != 3 {
		t.Fatalf("job = %+v", job)
	}

	if status, env := get(t, ts, "/jobs"); status != http.StatusOK || env.Meta.Total != 1 {
		t.Errorf("GET /jobs = %d total %d", status, env.Meta.Total)
	}
	if status, _ := do(t, ts, http.MethodDelete, "/jobs/"+created.ID, nil); status != http.StatusBadRequest {
		t.Errorf("DELETE finished job = %d, want 400", status)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"invalid json", http.MethodPost, "/jobs", "{", http.StatusBadRequest},
		{"unknown book", http.MethodPost, "/jobs", `{"book":"xyz"}`, http.StatusBadRequest},
		{"missing job", http.MethodGet, "/jobs/nope", "", http.StatusNotFound},
		{"cancel missing job", http.MethodDelete, "/jobs/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body *string
			if tt.body != "" {
				body = &tt.body
			}
			if status, _ := do(t, ts, tt.method, tt.path, body); status != tt.want {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, status, tt.want)
			}
		})
	}
}
