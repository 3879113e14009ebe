// Package api exposes the intake, means-test and document services over HTTP.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/TimurManjosov/triagem/internal/audit"
	"github.com/TimurManjosov/triagem/internal/auth"
	"github.com/TimurManjosov/triagem/internal/catalog"
	"github.com/TimurManjosov/triagem/internal/demanda"
	"github.com/TimurManjosov/triagem/internal/document"
	"github.com/TimurManjosov/triagem/internal/intake"
	"github.com/TimurManjosov/triagem/internal/logging"
	"github.com/TimurManjosov/triagem/internal/store"
	"github.com/TimurManjosov/triagem/internal/telemetry"
	"github.com/TimurManjosov/triagem/internal/triage"
)

const streamPingInterval = 25 * time.Second

// Options wires the server's dependencies. Audit and Logger may be nil.
type Options struct {
	Store          store.Store
	Auth           *auth.Authenticator
	Demandas       *demanda.Service
	Intake         *intake.Service
	Triage         *triage.Service
	Documents      *document.Generator
	Audit          demanda.AuditLogger
	Logger         *zap.Logger
	RateLimitPerIP int // requests per minute; 0 disables limiting
	RequestTimeout time.Duration
}

type Server struct {
	store     store.Store
	auth      *auth.Authenticator
	demandas  *demanda.Service
	intake    *intake.Service
	triage    *triage.Service
	documents *document.Generator
	audit     demanda.AuditLogger
	log       *zap.Logger
	rateLimit int
	timeout   time.Duration
}

func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &Server{
		store:     opts.Store,
		auth:      opts.Auth,
		demandas:  opts.Demandas,
		intake:    opts.Intake,
		triage:    opts.Triage,
		documents: opts.Documents,
		audit:     opts.Audit,
		log:       log,
		rateLimit: opts.RateLimitPerIP,
		timeout:   timeout,
	}
	s.auth.SetDenyHandler(func(w http.ResponseWriter, r *http.Request, status int, message string) {
		if status == http.StatusForbidden {
			ForbiddenError(w, r, message)
			return
		}
		UnauthorizedError(w, r, message)
	})
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(logging.Middleware(s.log))
	r.Use(telemetry.Middleware)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, audit.WithSource(r))
		})
	})
	if s.rateLimit > 0 {
		r.Use(httprate.Limit(s.rateLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				errResp := NewErrorResponse(http.StatusTooManyRequests, ErrCodeRateLimited, "Too many requests, slow down")
				writeErrorResponse(w, r, http.StatusTooManyRequests, errResp)
			}),
		))
	}

	// long-lived: outside the request timeout
	r.Get("/v1/catalog/stream", s.handleCatalogStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.timeout))
		s.routes(r)
	})
	return r
}

func (s *Server) routes(r chi.Router) {
	// health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// public: catalog (ETag)
	r.Get("/v1/catalog", s.handleCatalog)

	readonly := s.auth.RequireAuth(auth.RoleReadonly)
	admin := s.auth.RequireAuth(auth.RoleAdmin)
	superadmin := s.auth.RequireAuth(auth.RoleSuperadmin)

	r.Route("/v1/demandas", func(r chi.Router) {
		r.With(readonly).Get("/", s.handleListDemandas)
		r.With(readonly).Get("/{id}", s.handleGetDemanda)
		r.With(admin).Post("/", s.handleCreateDemanda)
		r.With(admin).Patch("/{id}", s.handleUpdateDemanda)
		r.With(admin).Put("/", s.handleBatchUpdateDemandas)
	})

	r.Route("/v1/intake/sessions", func(r chi.Router) {
		r.Use(admin)
		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Patch("/", s.handleUpdateSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/processos", s.handleAddProcesso)
			r.Put("/processos/{index}", s.handleSetProcesso)
			r.Delete("/processos/{index}", s.handleRemoveProcesso)
			r.Post("/pin", s.handlePinServidor)
			r.Post("/submit", s.handleSubmitSession)
			r.Post("/confirm", s.handleConfirmSession)
			r.Post("/cancel", s.handleCancelSession)
		})
	})

	r.Route("/v1/hipossuficiencia", func(r chi.Router) {
		r.With(readonly).Post("/evaluate", s.handleEvaluate)
		r.With(admin).Post("/analises", s.handleAnalyze)
		r.With(readonly).Get("/analises", s.handleListAnalises)
	})

	r.With(admin).Post("/v1/documentos/{kind}", s.handleGenerateDocument)
	r.With(readonly).Get("/v1/stats", s.handleStats)

	r.Route("/v1/audit-logs", func(r chi.Router) {
		r.Use(superadmin)
		r.Get("/", s.handleListAuditLogs)
		r.Get("/export", s.handleExportAuditLogs)
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	snap := catalog.Load()
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == snap.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", snap.ETag)
	w.Header().Set("Cache-Control", "no-cache")
	_ = json.NewEncoder(w).Encode(snap)
}

// handleCatalogStream sends the current catalog ETag as an "init" event and
// an "update" event whenever the catalog is reloaded.
func (s *Server) handleCatalogStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, r, "streaming unsupported")
		return
	}
	updates, unsub := catalog.Subscribe()
	defer unsub()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "event: init\ndata: %s\n\n", catalog.Load().ETag)
	flusher.Flush()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case etag, ok := <-updates:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: update\ndata: %s\n\n", etag)
			flusher.Flush()
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
