package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wolfman30/lead-intake-gateway/pkg/logging"
)

type countingObserver struct {
	paths []string
}

func (c *countingObserver) ObserveOriginRejected(path string) {
	c.paths = append(c.paths, path)
}

func guarded(allowed []string, obs OriginObserver) (http.Handler, *bool) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	return OriginGuard(allowed, logging.New("error"), obs)(next), &called
}

func TestOriginGuardAllowsListedOrigin(t *testing.T) {
	handler, called := guarded([]string{"https://example.com"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/lead", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !*called {
		t.Fatalf("expected handler to be called")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Fatalf("expected allow origin header, got %q", got)
	}
}

func TestOriginGuardRejectsUnknownOrigin(t *testing.T) {
	obs := &countingObserver{}
	handler, called := guarded([]string{"https://example.com"}, obs)
	req := httptest.NewRequest(http.MethodPost, "/api/lead", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if *called {
		t.Fatalf("expected handler not to be called")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
	if got := rec.Body.String(); got != "{\"ok\":false,\"error\":\"Forbidden origin\"}\n" {
		t.Fatalf("unexpected body %q", got)
	}
	if len(obs.paths) != 1 || obs.paths[0] != "/api/lead" {
		t.Fatalf("expected one rejection recorded, got %v", obs.paths)
	}
}

func TestOriginGuardFallsBackToReferer(t *testing.T) {
	handler, called := guarded([]string{"https://example.com"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/lead", nil)
	req.Header.Set("Referer", "https://example.com/financing/quiz?step=3")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if !*called {
		t.Fatalf("expected referer origin to be allowed")
	}

	handler, called = guarded([]string{"https://example.com"}, nil)
	req = httptest.NewRequest(http.MethodPost, "/api/lead", nil)
	req.Header.Set("Referer", "https://evil.example/page")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if *called || rec.Code != http.StatusForbidden {
		t.Fatalf("expected referer from other origin to be rejected, got %d", rec.Code)
	}
}

func TestOriginGuardPermissiveCases(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		referer string
	}{
		{"empty allowlist", nil, "https://anything.example", ""},
		{"no origin or referer", []string{"https://example.com"}, "", ""},
		{"unparsable referer", []string{"https://example.com"}, "", "not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, called := guarded(tt.allowed, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/lead", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if !*called {
				t.Fatalf("expected request to pass, got %d", rec.Code)
			}
		})
	}
}

func TestOriginGuardPreflight(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"matched origin", []string{"https://a.example", "https://b.example"}, "https://b.example", "https://b.example"},
		{"unmatched uses first entry", []string{"https://a.example", "https://b.example"}, "https://c.example", "https://a.example"},
		{"empty allowlist", nil, "https://c.example", "*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, called := guarded(tt.allowed, nil)
			req := httptest.NewRequest(http.MethodOptions, "/api/lead", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", "POST")
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if *called {
				t.Fatalf("preflight should not reach the handler")
			}
			if rec.Code != http.StatusNoContent {
				t.Fatalf("expected 204, got %d", rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Fatalf("expected allow origin %q, got %q", tt.want, got)
			}
			if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
				t.Fatalf("unexpected methods %q", got)
			}
			if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "content-type" {
				t.Fatalf("unexpected headers %q", got)
			}
			if got := rec.Header().Get("Access-Control-Max-Age"); got != "600" {
				t.Fatalf("unexpected max age %q", got)
			}
		})
	}
}

func TestRequestOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if got := RequestOrigin(req); got != "" {
		t.Fatalf("expected empty origin, got %q", got)
	}
	req.Header.Set("Referer", "HTTPS://Example.COM:8443/path")
	if got := RequestOrigin(req); got != "https://example.com:8443" {
		t.Fatalf("unexpected referer origin %q", got)
	}
	req.Header.Set("Origin", "https://origin.example/")
	if got := RequestOrigin(req); got != "https://origin.example" {
		t.Fatalf("expected origin header to win, got %q", got)
	}
}

func TestOriginGuardMatchesEquivalentOrigins(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		value   string
		allowed bool
	}{
		{"mixed case origin", "Origin", "https://Example.com", true},
		{"default https port in origin", "Origin", "https://example.com:443", true},
		{"default port in referer", "Referer", "https://example.com:443/contact", true},
		{"other port", "Origin", "https://example.com:8443", false},
		{"scheme mismatch", "Origin", "http://example.com", false},
		{"opaque origin", "Origin", "null", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, called := guarded([]string{"https://Example.com/"}, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/lead", nil)
			req.Header.Set(tt.header, tt.value)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if *called != tt.allowed {
				t.Fatalf("expected allowed=%v, got status %d", tt.allowed, rec.Code)
			}
			if !tt.allowed && rec.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", rec.Code)
			}
		})
	}
}

func TestNormalizeOrigin(t *testing.T) {
	tests := map[string]string{
		"https://Example.com":          "https://example.com",
		"HTTPS://example.com:443/path": "https://example.com",
		"http://example.com:80":        "http://example.com",
		"http://example.com:8080/":     "http://example.com:8080",
		"https://[::1]:443":            "https://[::1]",
		"example.com":                  "",
		"":                             "",
	}
	for in, want := range tests {
		if got := NormalizeOrigin(in); got != want {
			t.Errorf("NormalizeOrigin(%q) = %q, want %q", in, got, want)
		}
	}
}
