package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func ok() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSAllowAll(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/books", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	CORSMiddleware(CORSConfig{}, ok()).ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("credentials must not be allowed with a wildcard origin")
	}
}

func TestCORSRestricted(t *testing.T) {
	handler := CORSMiddleware(CORSConfig{AllowedOrigins: []string{"https://example.com"}}, ok())

	tests := []struct {
		name        string
		method      string
		origin      string
		wantStatus  int
		wantOrigin  string
		credentials bool
	}{
		{"allowed", http.MethodGet, "https://example.com", http.StatusOK, "https://example.com", true},
		{"disallowed", http.MethodGet, "https://evil.com", http.StatusOK, "", false},
		{"no origin", http.MethodGet, "", http.StatusOK, "", false},
		{"allowed preflight", http.MethodOptions, "https://example.com", http.StatusNoContent, "https://example.com", true},
		{"disallowed preflight", http.MethodOptions, "https://evil.com", http.StatusForbidden, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/books", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.credentials {
				t.Errorf("credentials = %v, want %v", got, tt.credentials)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders(APICSPConfig(), ok()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Referrer-Policy"} {
		if w.Header().Get(h) == "" {
			t.Errorf("%s not set", h)
		}
	}
	csp := w.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "default-src 'none'") || !strings.Contains(csp, "frame-ancestors 'none'") {
		t.Errorf("CSP = %q", csp)
	}
}

func TestCSPHeaderSkipsEmptyDirectives(t *testing.T) {
	got := CSPConfig{DefaultSrc: []string{"'self'"}, ConnectSrc: []string{"'self'", "wss:"}}.Header()
	if got != "default-src 'self'; connect-src 'self' wss:" {
		t.Errorf("Header() = %q", got)
	}
}
