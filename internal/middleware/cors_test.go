package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

const origin = "http://localhost:5173"

func preflight(method, headers string) *http.Request {
	req := httptest.NewRequest(http.MethodOptions, "/api/roles", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", method)
	if headers != "" {
		req.Header.Set("Access-Control-Request-Headers", headers)
	}
	return req
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, preflight(http.MethodDelete, "Content-Type"))

	if resp.Code < 200 || resp.Code > 299 {
		t.Fatalf("expected 2xx, got %d", resp.Code)
	}
	if called {
		t.Fatal("preflight must not reach the next handler")
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
	if got := resp.Header().Get("Access-Control-Allow-Methods"); got != http.MethodDelete {
		t.Fatalf("unexpected allow-methods %q", got)
	}
	if got := resp.Header().Get("Access-Control-Max-Age"); got != "300" {
		t.Fatalf("unexpected max-age %q", got)
	}
}

func TestCORSRejectsUnlistedMethod(t *testing.T) {
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, preflight(http.MethodPatch, ""))

	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("PATCH preflight should not be allowed, got allow-origin %q", got)
	}
}

func TestCORSPassesThrough(t *testing.T) {
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/roles", nil)
	req.Header.Set("Origin", origin)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)

	if resp.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", resp.Code)
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}
