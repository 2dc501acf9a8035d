package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"piiindex/internal/config"
	"piiindex/internal/core"
	"piiindex/internal/evaluator"
	"piiindex/internal/indexer"
	"piiindex/internal/keyedhash"
	"piiindex/internal/logger"
	"piiindex/internal/metrics"
	"piiindex/internal/server"
	"piiindex/internal/store"
)

func newTestServer(t *testing.T, token string) (*server.Server, store.Store) {
	t.Helper()
	h, err := keyedhash.New([]byte("test-secret"), 1)
	if err != nil {
		t.Fatalf("keyedhash.New: %v", err)
	}
	s := store.NewMemory(0)
	ix := indexer.New(h, s, 3, 4)
	if err := ix.IndexValue(context.Background(), core.FieldEmail, "alice@example.com", core.Reference("T1"), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("seed IndexValue: %v", err)
	}

	cfg := &config.Config{
		GramWidth:     3,
		KAnonymityMin: 1,
		MaxResults:    100,
		StoreBackend:  config.BackendMemory,
		AdminToken:    token,
		LogLevel:      "error",
	}
	eval := evaluator.New(h, s, 3)
	m := metrics.New()
	log := logger.New("TEST", "error")
	return server.New(cfg, eval, s, m, log), s
}

func TestHandleStatus(t *testing.T) {
	srv, _ := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestHandleQuery_MatchesSeededValue(t *testing.T) {
	srv, _ := newTestServer(t, "")
	body := `{"op":"AND","predicates":[{"field":"EMAIL","operator":"eq","query":"alice@example.com"}]}`
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Refs                   []string `json:"refs"`
		SuppressedForAnonymity bool     `json:"suppressedForAnonymity"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Refs) != 1 || resp.Refs[0] != "T1" {
		t.Errorf("got %+v", resp)
	}
}

func TestHandleQuery_UnknownOperator(t *testing.T) {
	srv, _ := newTestServer(t, "")
	body := `{"op":"AND","predicates":[{"field":"EMAIL","operator":"bogus","query":"x"}]}`
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestHandleQuery_NoPredicatesIsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t, "")
	body := `{"op":"AND","predicates":[]}`
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestAuthMiddleware_RejectsMissingToken(t *testing.T) {
	srv, _ := newTestServer(t, "s3cr3t")
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware_AcceptsValidToken(t *testing.T) {
	srv, _ := newTestServer(t, "s3cr3t")
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer s3cr3t")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestHandleSweep_RemovesExpiredEntries(t *testing.T) {
	srv, s := newTestServer(t, "")
	if err := s.Add(context.Background(), "idx:email:eq:expired", core.Reference("T9"), "EMAIL", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/sweep", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["expired"] < 1 {
		t.Errorf("expected at least 1 expired entry, got %+v", resp)
	}
}
