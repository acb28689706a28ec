// Package http serves the savings ledger as a single action endpoint.
// Every call names an action and answers with a JSON envelope carrying a
// success flag; all actions but login pass the session gate first.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/krizad/baht-saving-project/internal/core"
	"github.com/krizad/baht-saving-project/internal/ledger"
	applog "github.com/krizad/baht-saving-project/internal/log"
	"github.com/krizad/baht-saving-project/internal/metrics"
	ports "github.com/krizad/baht-saving-project/internal/sheets"
	"github.com/krizad/baht-saving-project/internal/session"
)

const (
	DefaultRequestTimeout = 7 * time.Second
	readinessTimeout      = 2 * time.Second
)

// Sessions issues and checks login sessions.
type Sessions interface {
	Login(ctx context.Context, username, password string) (session.Login, error)
	Validate(token string) (string, error)
}

// Ledger is the set of member and deposit operations the actions call.
type Ledger interface {
	SearchMembers(ctx context.Context, search string) ([]core.Member, error)
	GetMember(ctx context.Context, id string) (ledger.MemberProfile, error)
	AddMember(ctx context.Context, m core.Member) error
	UpdateMember(ctx context.Context, m core.Member) error
	ListWithStatus(ctx context.Context, monthYear string) ([]core.MemberStatus, error)
	Deposit(ctx context.Context, memberID, monthYear string) (int, error)
	Undo(ctx context.Context, memberID, monthYear string) error
	Summary(ctx context.Context) (core.Summary, error)
}

// Deps collects what NewServer wires together. Store, Metrics, Gatherer
// and Logger are optional.
type Deps struct {
	Sessions Sessions
	Ledger   Ledger
	Store    ports.Pinger
	Metrics  metrics.Recorder
	Gatherer prometheus.Gatherer
	Logger   *applog.Logger

	RequestTimeout     time.Duration
	LoginRatePerMinute int
}

type Server struct {
	http.Server

	sessions       Sessions
	ledger         Ledger
	store          ports.Pinger
	metrics        metrics.Recorder
	limiter        *loginLimiter
	requestTimeout time.Duration
	actions        map[string]action

	shutdownOnce sync.Once
}

func NewServer(addr string, deps Deps) *Server {
	s := &Server{
		sessions:       deps.Sessions,
		ledger:         deps.Ledger,
		store:          deps.Store,
		metrics:        deps.Metrics,
		limiter:        newLoginLimiter(deps.LoginRatePerMinute),
		requestTimeout: deps.RequestTimeout,
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.requestTimeout <= 0 {
		s.requestTimeout = DefaultRequestTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}
	s.registerActions()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(applog.Middleware(logger))
	r.Use(applog.RequestIDMiddleware(func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Get("/api", s.handleAPI)
	r.Post("/api", s.handleAPI)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	s.Addr = addr
	s.Handler = r
	s.ReadHeaderTimeout = 5 * time.Second
	s.ReadTimeout = 10 * time.Second
	s.WriteTimeout = 15 * time.Second
	s.IdleTimeout = 60 * time.Second
	return s
}

// handleAPI runs one action. Parameters come from the query string and the
// body; the answer is always a 200 envelope.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	params, err := ParseParams(w, r)
	if err != nil {
		failure(err).Write(w)
		return
	}
	name := strings.ToLower(strings.TrimSpace(params.Get("action")))

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	ctx = withClientIP(ctx, extractClientIP(r))

	resp, err := s.dispatch(ctx, name, params)
	s.observe(ctx, name, params, err, time.Since(start))
	if err != nil {
		failure(err).Write(w)
		return
	}
	resp.Write(w)
}

// observe records the action outcome in logs and metrics.
func (s *Server) observe(ctx context.Context, name string, p Params, err error, elapsed time.Duration) {
	outcome := metrics.OutcomeOK
	expected := err != nil && isExpected(err)
	switch {
	case err == nil:
	case expected:
		outcome = metrics.OutcomeRejected
	default:
		outcome = metrics.OutcomeError
	}

	label := name
	if _, ok := s.actions[name]; !ok {
		label = "unknown"
	}
	s.metrics.RecordAction(label, outcome, elapsed)

	fields := applog.NewFields()
	if id := p.Get("id"); id != "" {
		fields.WithDeposit(id, p.Get("monthYear"), 0)
	}
	applog.LogAction(ctx, label, err, expected, fields)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports whether the record store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err.Error())
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Shutdown stops the background limiter cleanup, then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
	})
	return s.Server.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		applog.LogHTTPEnd(r.Context(), r, status, time.Since(start).Milliseconds(), extractClientIP(r))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}
