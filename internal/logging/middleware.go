package logging

import (
	"bufio"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 64
)

// statusRecorder remembers the status and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status != 0 {
		return
	}
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.WriteHeader(http.StatusOK)
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

// Hijack lets websocket upgrades pass through the access log.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.NewUnsupported("hijack", "response writer cannot be hijacked")
	}
	sr.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// validRequestID accepts caller-supplied ids made of token characters only,
// so they can be echoed into headers and logs unchanged.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// RequestIDMiddleware puts a request id in the context and the response
// headers. A well-formed X-Request-ID from the caller is kept.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if !validRequestID(requestID) {
			requestID = NewRequestID()
		}
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), requestID)))
	})
}

// AccessLogMiddleware writes one "http_request" record per request. Server
// errors log at error level, client errors at warn, health checks at debug.
func AccessLogMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	logger = Component(logger, "http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(sr, r)
		if sr.status == 0 {
			sr.status = http.StatusOK
		}

		level := slog.LevelInfo
		switch {
		case sr.status >= 500:
			level = slog.LevelError
		case sr.status >= 400:
			level = slog.LevelWarn
		case r.URL.Path == "/health":
			level = slog.LevelDebug
		}
		With(r.Context(), logger).Log(r.Context(), level, "http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"status_code", sr.status,
			"bytes", sr.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// CombinedMiddleware assigns request ids and writes the access log.
func CombinedMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return RequestIDMiddleware(AccessLogMiddleware(logger, next))
}
