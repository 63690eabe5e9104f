package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/bookpkg"
	"github.com/FocuswithJustin/JuniperHelps/internal/logging"
	"github.com/FocuswithJustin/JuniperHelps/internal/resource"
)

// maxBodyBytes caps request bodies; the only body is a job request.
const maxBodyBytes = 4096

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthInfo is returned by /health.
type HealthInfo struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	Language     string `json:"language"`
	Organization string `json:"organization"`
	Clients      int    `json:"websocket_clients"`
	Jobs         int    `json:"jobs"`
}

// BookInfo describes one canonical book.
type BookInfo struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Number    int    `json:"number"`
	Testament string `json:"testament"`
}

// SlotSummary describes one resolved slot without its content.
type SlotSummary struct {
	Source      string `json:"source"`
	Identifier  string `json:"identifier"`
	Path        string `json:"path"`
	ContentHash string `json:"contentHash"`
	Size        int    `json:"size"`
}

// PackageSummary is a book package without file contents.
type PackageSummary struct {
	Book         string                        `json:"book"`
	Language     string                        `json:"language"`
	Organization string                        `json:"organization"`
	FetchedAt    string                        `json:"fetchedAt"`
	Types        []resource.Type               `json:"types"`
	Slots        map[resource.Type]SlotSummary `json:"slots"`
	Failures     map[resource.Type]string      `json:"failures,omitempty"`
}

func summarize(p *bookpkg.Package) PackageSummary {
	out := PackageSummary{
		Book:         p.Book,
		Language:     p.Language,
		Organization: p.Organization,
		FetchedAt:    p.FetchedAt.UTC().Format(time.RFC3339),
		Types:        p.Types(),
		Slots:        make(map[resource.Type]SlotSummary, len(p.Slots)),
		Failures:     p.Failures,
	}
	for t, s := range p.Slots {
		out.Slots[t] = SlotSummary{
			Source:      s.Source,
			Identifier:  s.Identifier,
			Path:        s.Path,
			ContentHash: s.ContentHash,
			Size:        len(s.RawContent),
		}
	}
	return out
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"name":         "Translation Helps API",
		"version":      s.cfg.Version,
		"language":     s.helps.Language(),
		"organization": s.helps.Organization(),
		"endpoints": []string{
			"GET /health",
			"GET /books",
			"GET /books/{book}/text?type=ult|ust",
			"GET /books/{book}/notes",
			"GET /books/{book}/wordlinks",
			"GET /books/{book}/questions",
			"GET /books/{book}/package",
			"GET /books/{book}/align?chapter=&verse=&type=",
			"GET /words/{id}",
			"GET /academy/{id}",
			"GET /passage?ref=",
			"GET /jobs",
			"POST /jobs",
			"GET /jobs/{id}",
			"DELETE /jobs/{id}",
			"WS /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := HealthInfo{
		Status:       "healthy",
		Version:      s.cfg.Version,
		Uptime:       time.Since(s.started).Round(time.Second).String(),
		Language:     s.helps.Language(),
		Organization: s.helps.Organization(),
		Jobs:         len(s.jobs.List()),
	}
	if s.hub != nil {
		info.Clients = s.hub.Clients()
	}
	respond(w, http.StatusOK, info)
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.helps.AvailableBooks(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	out := make([]BookInfo, 0, len(books))
	for _, b := range books {
		out = append(out, BookInfo{Code: b.Code, Name: b.Name, Number: b.Number, Testament: b.Testament})
	}
	respondList(w, out, len(out))
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	textType, err := scriptureType(r.URL.Query().Get("type"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	text, err := s.helps.BibleText(r.Context(), r.PathValue("book"), textType)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, text)
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.helps.TranslationNotes(r.Context(), r.PathValue("book"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondList(w, notes, len(notes))
}

func (s *Server) handleWordLinks(w http.ResponseWriter, r *http.Request) {
	links, err := s.helps.TranslationWordsLinks(r.Context(), r.PathValue("book"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondList(w, links, len(links))
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := s.helps.TranslationQuestions(r.Context(), r.PathValue("book"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondList(w, questions, len(questions))
}

func (s *Server) handlePackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := s.helps.Package(r.Context(), r.PathValue("book"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, summarize(pkg))
}

func (s *Server) handleAlign(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	textType, err := scriptureType(q.Get("type"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	chapter, err := strconv.Atoi(q.Get("chapter"))
	if err != nil || chapter < 1 {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "chapter must be a positive integer")
		return
	}
	verse := strings.TrimSpace(q.Get("verse"))
	if verse == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "verse is required")
		return
	}
	result, err := s.helps.VerseAlignment(r.Context(), r.PathValue("book"), textType, chapter, verse)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, result)
}

func (s *Server) handleWord(w http.ResponseWriter, r *http.Request) {
	word, err := s.helps.TranslationWord(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, word)
}

func (s *Server) handleAcademy(w http.ResponseWriter, r *http.Request) {
	article, err := s.helps.TranslationAcademyArticle(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, article)
}

func (s *Server) handlePassage(w http.ResponseWriter, r *http.Request) {
	reference := strings.TrimSpace(r.URL.Query().Get("ref"))
	if reference == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "ref is required")
		return
	}
	helps, err := s.helps.PassageHelps(r.Context(), reference)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, helps)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobs.List()
	respondList(w, jobs, len(jobs))
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body")
		return
	}
	book, ok := resource.LookupBook(req.Book)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "unknown book "+strconv.Quote(req.Book))
		return
	}

	job := s.jobs.Create(book.Code)
	snapshot, _ := s.jobs.Get(job.ID)
	s.jobs.Run(job, s.helps.Package, s.hub)
	s.logger.Info("job created", "job_id", job.ID, "book", book.Code)
	respond(w, http.StatusAccepted, snapshot)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
		return
	}
	respond(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.jobs.Cancel(id); err != nil {
		s.respondErr(w, r, err)
		return
	}
	job, _ := s.jobs.Get(id)
	respond(w, http.StatusOK, job)
}

// scriptureType parses the type parameter of text endpoints; empty means
// the literal text.
func scriptureType(s string) (resource.Type, error) {
	if strings.TrimSpace(s) == "" {
		return resource.ULT, nil
	}
	return resource.ParseType(s)
}

// errorStatus maps an error to an HTTP status and code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, errors.ErrUnsupported):
		return http.StatusUnprocessableEntity, "UNSUPPORTED"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, errors.ErrRateLimited):
		return http.StatusServiceUnavailable, "UPSTREAM_RATE_LIMITED"
	case errors.Is(err, errors.ErrTransient), errors.Is(err, errors.ErrExhaustedRetries):
		return http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logging.With(r.Context(), s.logger).Error("request failed", "path", r.URL.Path, "error", err)
		message = "Internal server error"
	}
	respondError(w, status, code, message)
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondList(w http.ResponseWriter, data any, total int) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Total: total, Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func writeJSON(w http.ResponseWriter, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
