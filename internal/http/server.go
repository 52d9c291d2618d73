package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"mmms/internal/auth"
	"mmms/internal/core"
	"mmms/internal/log"
	"mmms/internal/middleware/ratelimit"
	"mmms/internal/middleware/security"
	"mmms/internal/middleware/trace"
	"mmms/internal/services"
	"mmms/internal/sheets"
)

// Config holds the listener settings of the API server.
type Config struct {
	Addr               string
	FrontendURL        string
	RateLimitPerMinute int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Provider sheets.Provider
	// Ready reports whether the storage backend can serve requests.
	Ready    func(ctx context.Context) error
	Auth     *auth.Service
	Services services.Deps
	Logger   *log.Logger
}

type Server struct {
	http.Server

	cfg      Config
	provider sheets.Provider
	ready    func(ctx context.Context) error
	auth     *auth.Service
	svcDeps  services.Deps
	logger   *log.Logger
	validate *validator.Validate

	rateLimiter      *rateLimiter
	traceMiddleware  *trace.Middleware
	securityDetector *security.Detector
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer builds the API server and its middleware chain.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	svcDeps := deps.Services
	if svcDeps.Logger == nil {
		svcDeps.Logger = logger
	}

	s := &Server{
		cfg:              cfg,
		provider:         deps.Provider,
		ready:            deps.Ready,
		auth:             deps.Auth,
		svcDeps:          svcDeps.WithDefaults(),
		logger:           logger.WithComponent(log.ComponentHTTP),
		validate:         newValidator(),
		securityDetector: security.NewDetector(),
		appMetrics:       newAppMetrics(),
	}
	s.rateLimiter = newRateLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}, s.securityDetector.ExtractClientIP)
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.middleware(s.routes()),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	protect := s.auth.Middleware(writeError)
	p := func(h http.HandlerFunc) http.Handler { return protect(h) }

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/auth/google/url", s.handleAuthURL)
	mux.HandleFunc("GET /api/auth/google/callback", s.handleAuthRedirect)
	mux.HandleFunc("POST /api/auth/google/callback", s.handleAuthCallback)
	mux.HandleFunc("POST /api/auth/refresh", s.handleAuthRefresh)
	mux.Handle("GET /api/auth/me", p(s.handleMe))

	mux.Handle("POST /api/budget/spreadsheet/create", p(s.handleCreateSpreadsheet))
	mux.Handle("POST /api/budget/entry", p(s.handleSaveBudget))
	mux.Handle("GET /api/budget/entries", p(s.handleListBudgetEntries))
	mux.Handle("DELETE /api/budget/entry/{rowIndex}", p(s.handleDeleteBudgetEntry))

	mux.Handle("GET /api/budget-goals", p(s.handleListBudgetGoals))
	mux.Handle("POST /api/budget-goals", p(s.handleCreateBudgetGoal))
	mux.Handle("GET /api/budget-goals/progress", p(s.handleBudgetProgress))
	mux.Handle("PUT /api/budget-goals/{id}", p(s.handleUpdateBudgetGoal))
	mux.Handle("DELETE /api/budget-goals/{id}", p(s.handleDeleteBudgetGoal))

	mux.Handle("GET /api/savings-goals", p(s.handleListSavingsGoals))
	mux.Handle("POST /api/savings-goals", p(s.handleCreateSavingsGoal))
	mux.Handle("GET /api/savings-goals/progress", p(s.handleSavingsProgress))
	mux.Handle("PUT /api/savings-goals/{id}", p(s.handleUpdateSavingsGoal))
	mux.Handle("DELETE /api/savings-goals/{id}", p(s.handleDeleteSavingsGoal))
	mux.Handle("POST /api/savings-goals/{id}/contributions", p(s.handleAddContribution))

	mux.Handle("GET /api/categories", p(s.handleListCategories))
	mux.Handle("POST /api/categories", p(s.handleCreateCategory))
	mux.Handle("GET /api/categories/breakdown", p(s.handleCategoryBreakdown))
	mux.Handle("GET /api/categories/{id}", p(s.handleGetCategory))
	mux.Handle("PUT /api/categories/{id}", p(s.handleUpdateCategory))
	mux.Handle("DELETE /api/categories/{id}", p(s.handleDeleteCategory))

	mux.Handle("GET /api/transactions", p(s.handleListTransactions))
	mux.Handle("POST /api/transactions", p(s.handleCreateTransaction))
	mux.Handle("GET /api/transactions/summary", p(s.handleTransactionSummary))
	mux.Handle("GET /api/transactions/export", p(s.handleExportTransactions))
	mux.Handle("DELETE /api/transactions/{id}", p(s.handleDeleteTransaction))

	mux.Handle("GET /api/dashboard", p(s.handleDashboard))

	mux.HandleFunc("GET /api/currency/rates", s.handleCurrencyRates)
	mux.HandleFunc("POST /api/currency/convert", s.handleCurrencyConvert)
	mux.HandleFunc("GET /api/currency/supported", s.handleSupportedCurrencies)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorBody{Error: "Route not found"})
	})
	return mux
}

// middleware wraps the router, outermost first: trace, logger in context,
// security headers, CORS, probe detection, rate limit on /api/.
func (s *Server) middleware(h http.Handler) http.Handler {
	root := s.logger.WithComponent(log.ComponentApp)
	chain := []func(http.Handler) http.Handler{
		s.traceMiddleware.Middleware,
		trace.LoggerMiddleware(root),
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
		security.CORS(security.DefaultCORSConfig(s.cfg.FrontendURL)),
		s.securityDetector.Middleware(root),
		s.rateLimiter.Middleware(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, ErrorBody{Error: "Rate limit exceeded. Please try again later."})
		}),
	}
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

// Shutdown stops background work and drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
	})
	return s.Server.Shutdown(ctx)
}

// workspace binds the services to the authenticated user of r.
func (s *Server) workspace(r *http.Request) (*services.Workspace, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, &core.AuthError{Reason: "no authenticated user", Missing: true}
	}
	gw, err := s.provider.Gateway(r.Context(), user)
	if err != nil {
		return nil, err
	}
	return services.NewWorkspace(user, gw, s.svcDeps), nil
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}
