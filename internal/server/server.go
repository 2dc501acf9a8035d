// Package server provides the HTTP admin/query API for a running index
// instance.
//
// Endpoints:
//
//	GET  /status   - instance health, configuration summary
//	GET  /metrics  - JSON metrics snapshot
//	GET  /stats    - store stats (total keys, per-tag counts, oldest/newest)
//	POST /query    - evaluate a Boolean composition of predicates
//	POST /sweep    - trigger an immediate expiry sweep
//
// Requests pass an optional bearer-token auth middleware; responses are
// written with a writeJSON helper; ListenAndServe runs a plain
// http.Server with a read-header timeout.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"piiindex/internal/anonymity"
	"piiindex/internal/compose"
	"piiindex/internal/config"
	"piiindex/internal/core"
	"piiindex/internal/evaluator"
	"piiindex/internal/logger"
	"piiindex/internal/metrics"
	"piiindex/internal/store"
)

// Server is the admin/query API server.
type Server struct {
	cfg       *config.Config
	startTime time.Time
	eval      *evaluator.Evaluator
	gate      anonymity.Gate
	st        store.Store
	m         *metrics.Metrics
	log       *logger.Logger
	token     string // bearer token for auth; empty = no auth
	httpSrv   *http.Server
}

// New creates an admin/query server.
func New(cfg *config.Config, eval *evaluator.Evaluator, st store.Store, m *metrics.Metrics, log *logger.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		startTime: time.Now(),
		eval:      eval,
		gate:      anonymity.NewGate(cfg.KAnonymityMin),
		st:        st,
		m:         m,
		log:       log,
		token:     cfg.AdminToken,
	}
	if s.token != "" {
		s.log.Info("auth_enabled", "bearer token authentication enabled")
	}
	return s
}

// Handler returns the HTTP handler for the admin/query API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/query", s.handleQuery)
	mux.HandleFunc("/sweep", s.handleSweep)
	return s.authMiddleware(mux)
}

// authMiddleware checks for a valid Bearer token if one is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(auth[len(prefix):])), []byte(s.token)) != 1 {
			s.log.Warnf("auth_reject", "unauthorized access attempt from %s to %s", r.RemoteAddr, r.URL.Path)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := struct {
		Status        string `json:"status"`
		Uptime        string `json:"uptime"`
		GramWidth     int    `json:"gramWidth"`
		KAnonymityMin int    `json:"kAnonymityMin"`
		StoreBackend  string `json:"storeBackend"`
	}{
		Status:        "running",
		Uptime:        time.Since(s.startTime).Round(time.Second).String(),
		GramWidth:     s.cfg.GramWidth,
		KAnonymityMin: s.cfg.KAnonymityMin,
		StoreBackend:  string(s.cfg.StoreBackend),
	}
	writeJSON(w, s.log, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	if s.m == nil {
		http.Error(w, "metrics not enabled", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s.log, http.StatusOK, s.m.Snapshot())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.st.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, s.log, http.StatusOK, st)
}

// predicateRequest mirrors evaluator.Predicate over the wire, using full
// field names and query-facing operator names (eq, startsWith, endsWith,
// contains) rather than the internal short alias/tag forms.
type predicateRequest struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Query    string `json:"query"`
}

// queryRequest is a one-level Boolean composition of predicates.
type queryRequest struct {
	Op         string             `json:"op"` // "AND" or "OR"
	Predicates []predicateRequest `json:"predicates"`
}

// queryResponse is the user-visible response object.
type queryResponse struct {
	Refs                  []string `json:"refs"`
	SuppressedForAnonymity bool    `json:"suppressedForAnonymity"`
	TruncatedToMaxResults bool     `json:"truncatedToMaxResults"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Predicates) == 0 {
		http.Error(w, "at least one predicate is required", http.StatusBadRequest)
		return
	}

	started := time.Now()
	ctx := r.Context()
	results := make([]core.RefSet, 0, len(req.Predicates))
	for _, pr := range req.Predicates {
		field, ok := core.FieldByName(pr.Field)
		if !ok {
			s.writeError(w, fmt.Errorf("%w: %s", core.ErrUnknownField, pr.Field))
			return
		}
		op, ok := operatorByName(pr.Operator)
		if !ok {
			s.writeError(w, fmt.Errorf("%w: %s", core.ErrUnknownOperator, pr.Operator))
			return
		}
		refs, err := s.eval.Evaluate(ctx, evaluator.Predicate{
			Field:    field,
			Operator: op,
			Query:    pr.Query,
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
		results = append(results, refs)
	}

	op := compose.And
	if strings.EqualFold(req.Op, "OR") {
		op = compose.Or
	}
	composed, err := compose.Compose(op, results...)
	if err != nil {
		s.writeError(w, err)
		return
	}

	gated := s.gate.Apply(composed)
	refs := gated.Refs.Slice()
	truncated := false
	if s.cfg.MaxResults > 0 && len(refs) > s.cfg.MaxResults {
		refs = refs[:s.cfg.MaxResults]
		truncated = true
	}

	if s.m != nil {
		s.m.QueriesTotal.Add(1)
		if gated.Suppressed {
			s.m.QueriesSuppressed.Add(1)
		}
		if truncated {
			s.m.QueriesTruncated.Add(1)
		}
		s.m.RecordQueryLatency(time.Since(started))
	}

	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = string(ref)
	}
	writeJSON(w, s.log, http.StatusOK, queryResponse{
		Refs:                   out,
		SuppressedForAnonymity: gated.Suppressed,
		TruncatedToMaxResults:  truncated,
	})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	n, err := s.st.ExpireSweep(r.Context(), time.Now())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.m != nil {
		s.m.SweepRuns.Add(1)
		s.m.EntriesExpired.Add(int64(n))
	}
	writeJSON(w, s.log, http.StatusOK, map[string]int{"expired": n})
}

// writeError maps a core error kind to an HTTP status, and writes a
// single-line human message with no stack trace.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case isKind(err, core.ErrInvalidInput), isKind(err, core.ErrUnknownField), isKind(err, core.ErrUnknownOperator):
		status = http.StatusBadRequest
	case isKind(err, core.ErrQueryTooShort):
		status = http.StatusUnprocessableEntity
	case isKind(err, core.ErrStoreTransient):
		status = http.StatusServiceUnavailable
	case isKind(err, core.ErrDeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if s.m != nil {
		s.m.ErrorsQuery.Add(1)
	}
	http.Error(w, err.Error(), status)
}

// operatorByName resolves the wire-facing operator name to its internal
// core.Operator tag: eq and contains pass through unchanged, while
// startsWith/endsWith map to the short pre/suf tags carried in index keys.
func operatorByName(name string) (core.Operator, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "eq":
		return core.OpEquals, true
	case "startswith":
		return core.OpPrefix, true
	case "endswith":
		return core.OpSuffix, true
	case "contains":
		return core.OpContains, true
	default:
		return "", false
	}
}

func isKind(err, kind error) bool {
	for err != nil {
		if err == kind { //nolint:errorlint // sentinel comparison mirrors errors.Is without importing it twice here
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func writeJSON(w http.ResponseWriter, log *logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("json_encode", "%v", err)
	}
}

// ListenAndServe starts the admin/query HTTP server. The admin/query
// surface is plaintext HTTP/1.1 by design: it is meant to sit behind a
// terminating load balancer or run on a private network, not negotiate
// TLS/ALPN itself, so there is no http.Server.ServeTLS call here for an
// HTTP/2 configuration to attach to.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.AdminPort)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Infof("listen", "admin/query API listening on %s", addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, honoring ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
