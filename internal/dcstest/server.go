// Package dcstest runs an in-process fake of the content service for tests.
//
// It serves catalog search, repository lookup, the contents endpoint and raw
// files (GET and HEAD), counts every request, and can be scripted to answer a
// file's next requests with given status codes (for example one 429 then 200).
package dcstest

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/FocuswithJustin/JuniperHelps/internal/dcs"
)

// Server is a fake content service.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	repos     []fakeRepo
	files     map[string]string
	scripts   map[string][]int
	counts    map[string]int
	total     int
	noCatalog bool
}

type fakeRepo struct {
	repo      dcs.Repository
	inCatalog bool
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	s := &Server{
		files:   make(map[string]string),
		scripts: make(map[string][]int),
		counts:  make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/catalog/search", s.handleCatalog)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{name}", s.handleRepo)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{name}/contents/{path...}", s.handleContents)
	mux.HandleFunc("GET /{owner}/{name}/raw/{ref}/{path...}", s.handleRaw)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Client returns a content service client pointed at the fake.
func (s *Server) Client(opts ...dcs.Option) *dcs.Client {
	all := append([]dcs.Option{dcs.WithBaseURL(s.URL+"/api/v1", s.URL)}, opts...)
	return dcs.NewClient(all...)
}

// AddRepository registers a repository. When inCatalog is false the
// repository is only reachable through direct lookup.
func (s *Server) AddRepository(repo dcs.Repository, inCatalog bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if repo.FullName == "" {
		repo.FullName = repo.Owner + "/" + repo.Name
	}
	if repo.Stage == "" {
		repo.Stage = dcs.DefaultStage
	}
	s.repos = append(s.repos, fakeRepo{repo: repo, inCatalog: inCatalog})
}

// AddFile stores content for path at ref in the named repository.
func (s *Server) AddFile(fullName, ref, path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[fileKey(fullName, ref, path)] = content
}

// Script makes the next requests for path (in any repository, at any ref)
// answer with the given statuses in order. A 200 entry falls through to the
// normal response.
func (s *Server) Script(path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[path] = append(s.scripts[path], statuses...)
}

// ScriptHead is Script for existence checks (HEAD requests) only.
func (s *Server) ScriptHead(path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts["head:"+path] = append(s.scripts["head:"+path], statuses...)
}

// DisableCatalog makes catalog search return no entries.
func (s *Server) DisableCatalog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noCatalog = true
}

// Requests returns the total number of requests served.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Count returns the number of requests of one kind: "catalog", "repo", or
// "get:<path>" / "head:<path>" for file requests.
func (s *Server) Count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[kind]
}

// ResetCounts zeroes every counter.
func (s *Server) ResetCounts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = 0
	s.counts = make(map[string]int)
}

func (s *Server) record(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.counts[kind]++
}

func (s *Server) nextScripted(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.scripts[path]
	if len(queue) == 0 {
		return 0
	}
	s.scripts[path] = queue[1:]
	return queue[0]
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	s.record("catalog")
	q := r.URL.Query()
	owner := q.Get("owner")
	name := strings.ToLower(q.Get("repo"))
	stage := q.Get("stage")

	s.mu.Lock()
	entries := []map[string]any{}
	for _, fr := range s.repos {
		if s.noCatalog || !fr.inCatalog {
			continue
		}
		repo := fr.repo
		if owner != "" && !strings.EqualFold(repo.Owner, owner) {
			continue
		}
		if stage != "" && repo.Stage != stage {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(repo.Name), name) {
			continue
		}
		entries = append(entries, map[string]any{
			"name":               repo.Name,
			"owner":              repo.Owner,
			"full_name":          repo.FullName,
			"default_branch":     repo.DefaultBranch,
			"branch_or_tag_name": repo.TagOrBranch,
			"subject":            repo.Subject,
			"stage":              repo.Stage,
			"html_url":           s.URL + "/" + repo.FullName,
		})
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "data": entries})
}

func (s *Server) handleRepo(w http.ResponseWriter, r *http.Request) {
	s.record("repo")
	repo, ok := s.lookup(r.PathValue("owner"), r.PathValue("name"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":           repo.Name,
		"owner":          map[string]string{"login": repo.Owner},
		"full_name":      repo.FullName,
		"default_branch": repo.DefaultBranch,
		"html_url":       s.URL + "/" + repo.FullName,
	})
}

func (s *Server) handleContents(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	s.record("get:" + path)
	if s.scripted(w, path) {
		return
	}
	content, ok := s.file(r.PathValue("owner"), r.PathValue("name"), r.URL.Query().Get("ref"), path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"type":     "file",
		"encoding": "base64",
		"content":  base64.StdEncoding.EncodeToString([]byte(content)),
	})
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	if r.Method == http.MethodHead {
		s.record("head:" + path)
		if s.scripted(w, "head:"+path) {
			return
		}
	} else {
		s.record("get:" + path)
		if s.scripted(w, path) {
			return
		}
	}
	content, ok := s.file(r.PathValue("owner"), r.PathValue("name"), r.PathValue("ref"), path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write([]byte(content))
	}
}

func (s *Server) scripted(w http.ResponseWriter, path string) bool {
	status := s.nextScripted(path)
	if status == 0 || status == http.StatusOK {
		return false
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "0")
	}
	http.Error(w, http.StatusText(status), status)
	return true
}

func (s *Server) lookup(owner, name string) (dcs.Repository, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fr := range s.repos {
		if strings.EqualFold(fr.repo.Owner, owner) && strings.EqualFold(fr.repo.Name, name) {
			return fr.repo, true
		}
	}
	return dcs.Repository{}, false
}

func (s *Server) file(owner, name, ref, path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.files[fileKey(owner+"/"+name, ref, path)]
	return content, ok
}

func fileKey(fullName, ref, path string) string {
	return strings.ToLower(fullName) + "@" + ref + ":" + strings.TrimPrefix(path, "/")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
