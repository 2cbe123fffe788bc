package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"atelier/internal/core"
	"atelier/internal/log"
	"atelier/internal/middleware/ratelimit"
	"atelier/internal/middleware/security"
	"atelier/internal/middleware/trace"
	"atelier/internal/services"
)

// Options tune the server. Zero values pick the defaults.
type Options struct {
	Logger             *log.Logger
	RateLimitPerMinute int
	AllowedOrigins     []string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
}

type Server struct {
	http.Server
	svc      *services.LedgerService
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	resolver *security.Resolver
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.LedgerService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}

	s := &Server{
		svc:      svc,
		logger:   logger,
		resolver: security.NewResolver(),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
	}
	s.tracer = trace.NewMiddleware(logger, s.resolver.ClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	s.routes(mux)

	headers := security.DefaultHeadersConfig()
	headers.AllowedOrigins = opts.AllowedOrigins

	var h http.Handler = mux
	h = newIdempotency(svc.Store()).Middleware(h)
	h = s.limiter.Middleware(s.resolver.ClientIP, s.rateLimited,
		http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete)(h)
	h = s.flagSuspicious(h)
	h = security.NewHeadersMiddleware(headers).Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("PUT /api/projects/{id}", s.handleUpdateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)
	mux.HandleFunc("GET /api/projects/{id}/summary", s.handleOwnerSummary(core.OwnerProject))
	mux.HandleFunc("GET /api/projects/{id}/statement.xlsx", s.handleStatementXLSX(core.OwnerProject))
	mux.HandleFunc("GET /api/projects/{id}/task-metrics", s.handleTaskMetrics)
	mux.HandleFunc("GET /api/projects/{id}/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/projects/{id}/tasks", s.handleCreateTask)

	mux.HandleFunc("GET /api/suppliers", s.handleListSuppliers)
	mux.HandleFunc("POST /api/suppliers", s.handleCreateSupplier)
	mux.HandleFunc("GET /api/suppliers/{id}", s.handleGetSupplier)
	mux.HandleFunc("PUT /api/suppliers/{id}", s.handleUpdateSupplier)
	mux.HandleFunc("DELETE /api/suppliers/{id}", s.handleDeleteSupplier)
	mux.HandleFunc("GET /api/suppliers/{id}/summary", s.handleOwnerSummary(core.OwnerSupplier))
	mux.HandleFunc("GET /api/suppliers/{id}/statement.xlsx", s.handleStatementXLSX(core.OwnerSupplier))

	mux.HandleFunc("GET /api/team-members", s.handleListTeamMembers)
	mux.HandleFunc("POST /api/team-members", s.handleCreateTeamMember)
	mux.HandleFunc("GET /api/team-members/{id}", s.handleGetTeamMember)
	mux.HandleFunc("PUT /api/team-members/{id}", s.handleUpdateTeamMember)
	mux.HandleFunc("DELETE /api/team-members/{id}", s.handleDeleteTeamMember)
	mux.HandleFunc("GET /api/team-members/{id}/summary", s.handleOwnerSummary(core.OwnerTeamMember))
	mux.HandleFunc("GET /api/team-members/{id}/statement.xlsx", s.handleStatementXLSX(core.OwnerTeamMember))

	mux.HandleFunc("GET /api/expenses", s.handleListCharges(core.ChargeExpense))
	mux.HandleFunc("POST /api/expenses", s.handleCreateCharge(core.ChargeExpense))
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetCharge(core.ChargeExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteCharge(core.ChargeExpense))
	mux.HandleFunc("GET /api/work-entries", s.handleListCharges(core.ChargeWork))
	mux.HandleFunc("POST /api/work-entries", s.handleCreateCharge(core.ChargeWork))
	mux.HandleFunc("GET /api/work-entries/{id}", s.handleGetCharge(core.ChargeWork))
	mux.HandleFunc("DELETE /api/work-entries/{id}", s.handleDeleteCharge(core.ChargeWork))
	mux.HandleFunc("GET /api/charges/{id}/history", s.handleChargeHistory)

	mux.HandleFunc("GET /api/payments", s.handleListPayments)
	mux.HandleFunc("POST /api/payments", s.handleRecordPayment)
	mux.HandleFunc("DELETE /api/payments/{id}", s.handleDeletePayment)

	mux.HandleFunc("GET /api/summaries/{kind}", s.handleSummaries)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)

	mux.HandleFunc("PATCH /api/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusNotFound, core.KindNotFound, "no such endpoint")
	})
}

// rateLimited answers requests rejected by the limiter.
func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit, log.FieldClientIP, s.resolver.ClientIP(r),
		log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
	writeProblem(w, http.StatusTooManyRequests, core.KindUnavailable, "rate limit exceeded, retry later")
}

// flagSuspicious logs probing requests; it never blocks them.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.resolver.Suspicious(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldComponent, log.ComponentSecurity, log.FieldClientIP, s.resolver.ClientIP(r),
				log.FieldPath, r.URL.Path, log.FieldUserAgent, r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics reports request counters for the status log.
func (s *Server) Metrics() (requests, rateLimited, suspicious int64) {
	return s.tracer.GetMetrics().TotalRequests, s.limiter.Hits(), s.resolver.SuspiciousCount()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Ping(ctx); err != nil {
		writeError(w, r, core.Unavailable("readiness", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
