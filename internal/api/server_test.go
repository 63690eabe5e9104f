package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/bookpkg"
	"github.com/FocuswithJustin/JuniperHelps/internal/dcs"
	"github.com/FocuswithJustin/JuniperHelps/internal/dcstest"
	"github.com/FocuswithJustin/JuniperHelps/internal/retry"
	"github.com/FocuswithJustin/JuniperHelps/internal/service"
)

const org = "unfoldingWord"

const jonahUSFM = `\id JON
\c 1
\v 1 \zaln-s |x-strong="H1697" x-lemma="דָּבָר" x-occurrence="1" x-occurrences="1" x-content="דְּבַר"\*\w Now|x-occurrence="1" x-occurrences="1"\w*\zaln-e\* the word came.
\v 2 Get up and go.
`

const jonahNotes = "Reference\tID\tTags\tSupportReference\tQuote\tOccurrence\tNote\n" +
	"1:1\tn1\t\trc://*/ta/man/translate/figs-idiom\tדְּבַר\t1\tThe word of Yahweh.\n" +
	"1:3\tn2\t\t\tבָּרַח\t1\tHe ran away.\n"

const jonahLinks = "Reference\tID\tTags\tOrigWords\tOccurrence\tTWLink\n" +
	"1:1\tl1\tkeyterm\tיְהוָה\t1\trc://*/tw/dict/bible/kt/yahweh\n"

func seed(t *testing.T) *dcstest.Server {
	t.Helper()
	srv := dcstest.New(t)
	srv.AddRepository(dcs.Repository{Name: "en_ult", Owner: org}, true)
	srv.AddFile(org+"/en_ult", "master", "manifest.yaml", "projects:\n  - identifier: jon\n    path: ./32-JON.usfm\n")
	srv.AddFile(org+"/en_ult", "master", "32-JON.usfm", jonahUSFM)
	srv.AddRepository(dcs.Repository{Name: "en_tn", Owner: org}, true)
	srv.AddFile(org+"/en_tn", "master", "tn_JON.tsv", jonahNotes)
	srv.AddRepository(dcs.Repository{Name: "en_twl", Owner: org}, true)
	srv.AddFile(org+"/en_twl", "master", "twl_JON.tsv", jonahLinks)
	srv.AddRepository(dcs.Repository{Name: "en_tw", Owner: org}, true)
	srv.AddFile(org+"/en_tw", "master", "bible/kt/yahweh.md", "# Yahweh\n\nThe name of God.\n")
	srv.AddRepository(dcs.Repository{Name: "en_ta", Owner: org}, true)
	srv.AddFile(org+"/en_ta", "master", "translate/figs-idiom/01.md", "### Description\n\nAn idiom.\n")
	return srv
}

func pipeline(srv *dcstest.Server, observer bookpkg.Observer) *service.Pipeline {
	return service.Build(srv.Client(), service.Options{
		Language:     "en",
		Organization: org,
		Retry:        retry.Config{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Observer:     observer,
	})
}

func newTestServer(t *testing.T, cfg Config, hub *Hub) *httptest.Server {
	t.Helper()
	if cfg.Version == "" {
		cfg.Version = "test"
	}
	var observer bookpkg.Observer
	if hub != nil {
		observer = hub.Publish
	}
	s, err := NewServer(cfg, pipeline(seed(t), observer).Service, hub, nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return ts
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func get(t *testing.T, ts *httptest.Server, path string) (int, envelope) {
	t.Helper()
	return do(t, ts, http.MethodGet, path, nil)
}

func do(t *testing.T, ts *httptest.Server, method, path string, body *string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(*body)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: decode: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func TestRootAndHealth(t *testing.T) {
	ts := newTestServer(t, Config{}, nil)

	status, env := get(t, ts, "/")
	if status != http.StatusOK || !env.Success {
		t.Fatalf("GET / = %d %+v", status, env)
	}
	var root map[string]any
	json.Unmarshal(env.Data, &root)
	if root["organization"] != org || root["language"] != "en" {
		t.Errorf("root = %v", root)
	}

	status, env = get(t, ts, "/health")
	if status != http.StatusOK {
		t.Fatalf("GET /health = %d", status)
	}
	var health HealthInfo
	json.Unmarshal(env.Data, &health)
	if health.Status != "healthy" || health.Version != "test" {
		t.Errorf("health = %+v", health)
	}

	status, env = get(t, ts, "/nope")
	if status != http.StatusNotFound || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Errorf("GET /nope = %d %+v", status, env.Error)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	ts := newTestServer(t, Config{}, nil)
	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", resp.Header.Get("X-Content-Type-Options"))
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID should be set")
	}
}

func TestBookEndpoints(t *testing.T) {
	ts := newTestServer(t, Config{}, nil)

	tests := []struct {
		path       string
		wantStatus int
		wantCode   string
		wantTotal  int
	}{
		{"/books", http.StatusOK, "", 1},
		{"/books/jon/text", http.StatusOK, "", 0},
		{"/books/jon/text?type=tn", http.StatusBadRequest, "INVALID_INPUT", 0},
		{"/books/jon/text?type=bogus", http.StatusBadRequest, "INVALID_INPUT", 0},
		{"/books/jon/text?type=ust", http.StatusNotFound, "NOT_FOUND", 0},
		{"/books/jon/notes", http.StatusOK, "", 2},
		{"/books/jon/wordlinks", http.StatusOK, "", 1},
		{"/books/jon/questions", http.StatusNotFound, "NOT_FOUND", 0},
		{"/books/xyz/notes", http.StatusBadRequest, "INVALID_INPUT", 0},
		{"/books/jon/package", http.StatusOK, "", 0},
		{"/books/jon/align?chapter=1&verse=1", http.StatusOK, "", 0},
		{"/books/jon/align?chapter=9&verse=1", http.StatusNotFound, "NOT_FOUND", 0},
		{"/books/jon/align?chapter=x&verse=1", http.StatusBadRequest, "INVALID_INPUT", 0},
		{"/books/jon/align?chapter=1", http.StatusBadRequest, "INVALID_INPUT", 0},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, env := get(t, ts, tt.path)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%+v)", status, tt.wantStatus, env.Error)
			}
			if tt.wantCode != "" && (env.Error == nil || env.Error.Code != tt.wantCode) {
				t.Errorf("error = %+v, want code %s", env.Error, tt.wantCode)
			}
			if tt.wantTotal > 0 && env.Meta.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", env.Meta.Total, tt.wantTotal)
			}
		})
	}
}

func TestPackageSummary(t *testing.T) {
	ts := newTestServer(t, Config{}, nil)
	_, env := get(t, ts, "/books/JON/package")

	var summary PackageSummary
	if err := json.Unmarshal(env.Data, &summary); err != nil {
		t.Fatal(err)
	}
	if summary.Book != "JON" || len(summary.Types) != 3 {
		t.Errorf("summary = %+v", summary)
	}
	if slot := summary.Slots["ult"]; slot.Path != "32-JON.usfm" || slot.Size == 0 || slot.ContentHash == "" {
		t.Errorf("ult slot = %+v", slot)
	}
	if _, ok := summary.Failures["tq"]; !ok {
		t.Errorf("failures = %v, want tq", summary.Failures)
	}
}

func TestOnDemandEndpoints(t *testing.T) {
	ts := newTestServer(t, Config{}, nil)

	status, env := get(t, ts, "/words/kt/yahweh")
	if status != http.StatusOK {
		t.Fatalf("GET /words/kt/yahweh = %d %+v", status, env.Error)
	}
	var word struct {
		Title string `json:"title"`
	}
	json.Unmarshal(env.Data, &word)
	if word.Title != "Yahweh" {
		t.Errorf("title = %q", word.Title)
	}

	if status, _ := get(t, ts, "/academy/translate/figs-idiom"); status != http.StatusOK {
		t.Errorf("GET /academy/translate/figs-idiom = %d", status)
	}
	if status, _ := get(t, ts, "/words/kt/missing"); status != http.StatusNotFound {
		t.Errorf("GET /words/kt/missing = %d, want 404", status)
	}
}

func TestPassageEndpoint(t *testing.T) {
	ts := newTestServer(t, Config{}, nil)

	status, env := get(t, ts, "/passage?ref=JON+1:1")
	if status != http.StatusOK {
		t.Fatalf("status = %d %+v", status, env.Error)
	}
	var helps service.PassageHelps
	json.Unmarshal(env.Data, &helps)
	if len(helps.Notes) != 1 || len(helps.Words) != 1 || helps.Words[0] != "kt/yahweh" {
		t.Errorf("helps = %+v", helps)
	}

	for _, path := range []string{"/passage", "/passage?ref=XYZ+1:1"} {
		if status, _ := get(t, ts, path); status != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", path, status)
		}
	}
}

func TestAuthEnabledServer(t *testing.T) {
	ts := newTestServer(t, Config{Auth: AuthConfig{Enabled: true, APIKey: testAPIKey}}, nil)

	if status, _ := get(t, ts, "/books"); status != http.StatusUnauthorized {
		t.Errorf("GET /books without key = %d, want 401", status)
	}
	if status, _ := get(t, ts, "/health"); status != http.StatusOK {
		t.Errorf("GET /health without key = %d, want 200", status)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/books", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /books with key = %d, want 200", resp.StatusCode)
	}
}

func TestNewServerRejectsBadAuth(t *testing.T) {
	_, err := NewServer(Config{Auth: AuthConfig{Enabled: true, APIKey: "short"}}, nil, nil, nil)
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("NewServer() error = %v, want invalid input", err)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.NewValidation("book", "unknown"), http.StatusBadRequest},
		{errors.NewParse("toml", "", "bad"), http.StatusBadRequest},
		{errors.NewNotFound("repository", "en_ult"), http.StatusNotFound},
		{&errors.ExhaustedRetriesError{Failures: []errors.Failure{{Candidate: "master", Err: errors.ErrNotFound}}}, http.StatusNotFound},
		{&errors.ExhaustedRetriesError{Failures: []errors.Failure{{Candidate: "master", Err: errors.ErrTransient}}}, http.StatusBadGateway},
		{&errors.TransientNetworkError{Op: "get", StatusCode: 503}, http.StatusBadGateway},
		{&errors.RateLimitedError{URL: "x"}, http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.NewUnsupported("format", "usx"), http.StatusUnprocessableEntity},
		{errors.ErrInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got, _ := errorStatus(tt.err); got != tt.want {
				t.Errorf("errorStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
