package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"budget/internal/auth"
	"budget/internal/docstore"
	"budget/internal/log"
	"budget/internal/metrics"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	"budget/internal/services"
	appweb "budget/web"
)

// pages are rendered inside layout.html with the shared partials.
var pages = []string{
	"overview.html",
	"expenses.html",
	"expense_new.html",
	"sign_in.html",
	"sign_up.html",
}

// Options wires the server's collaborators. Metrics and Pinger may be nil.
type Options struct {
	Addr               string
	Expenses           *services.ExpenseService
	Auth               *auth.Manager
	Pinger             docstore.Pinger
	Metrics            *metrics.Metrics
	Logger             *log.Logger
	RateLimitPerMinute int
	SecureCookies      bool
}

type Server struct {
	http.Server
	templates map[string]*template.Template
	expenses  *services.ExpenseService
	auth      *auth.Manager
	pinger    docstore.Pinger
	metrics   *metrics.Metrics
	logger    *log.Logger
	sanitizer *bluemonday.Policy

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector

	secureCookies bool
	startedAt     time.Time

	stopSessions func()
	sessionsDone chan struct{}
	shutdownOnce sync.Once
}

// NewServer parses the embedded templates, registers routes and starts
// listening for session changes. The caller runs ListenAndServe and Shutdown.
func NewServer(opts Options) (*Server, error) {
	if opts.Expenses == nil || opts.Auth == nil {
		return nil, fmt.Errorf("http server requires an expense service and an auth manager")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	templates, err := loadTemplates(appweb.TemplatesFS)
	if err != nil {
		return nil, err
	}

	s := &Server{
		templates:     templates,
		expenses:      opts.Expenses,
		auth:          opts.Auth,
		pinger:        opts.Pinger,
		metrics:       opts.Metrics,
		logger:        logger.WithComponent(log.ComponentHTTP),
		sanitizer:     newSanitizer(),
		secureCookies: opts.SecureCookies,
		startedAt:     time.Now(),
		rateLimiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:      security.NewDetector(logger, opts.Metrics),
		sessionsDone:  make(chan struct{}),
	}

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.watchSessions()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Public pages
	mux.HandleFunc("GET /{$}", s.handleOverview)
	mux.HandleFunc("GET /ui/overview", s.handleOverviewPanel)
	mux.HandleFunc("POST /theme", s.handleTheme)
	mux.HandleFunc("GET /sign-in", s.handleSignInPage)
	mux.HandleFunc("POST /sign-in", s.handleSignIn)
	mux.HandleFunc("GET /sign-up", s.handleSignUpPage)
	mux.HandleFunc("POST /sign-up", s.handleSignUp)
	mux.HandleFunc("POST /sign-out", s.handleSignOut)

	// Protected pages
	mux.Handle("GET /expenses", s.requireAuth(s.handleListExpenses))
	mux.Handle("GET /ui/expenses", s.requireAuth(s.handleExpenseRows))
	mux.Handle("GET /expenses/new", s.requireAuth(s.handleNewExpense))
	mux.Handle("POST /expenses", s.requireAuth(s.handleCreateExpense))
	mux.Handle("DELETE /expenses/{id}", s.requireAuth(s.handleDeleteExpense))
	mux.Handle("POST /expenses/{id}/delete", s.requireAuth(s.handleDeleteExpense))

	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		trace.SetRoute(r.Context(), r.Pattern)
	})
	h = s.withIdentity(h)
	h = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited,
		http.MethodPost, http.MethodDelete)(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = trace.NewMiddleware(s.detector.ExtractClientIP, s.logger, s.metrics).Middleware(h)
	return h
}

// loadTemplates parses each page together with the layout and partials.
func loadTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"money": formatMoney,
	}
	out := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.New(page).Funcs(funcs).ParseFS(fsys,
			"templates/layout.html",
			"templates/partials.html",
			"templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		out[page] = t
	}
	return out, nil
}

// pageData is what layout.html renders around every page.
type pageData struct {
	Title    string
	Theme    string
	Active   string
	Identity *auth.Identity
	Content  any
}

// render executes the full page. Output is buffered so a template failure
// still produces a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page, title string, content any) {
	data := pageData{
		Title:    title,
		Theme:    themeFromRequest(r),
		Active:   r.URL.Path,
		Identity: identityFrom(r.Context()),
		Content:  content,
	}
	s.execute(w, r, status, page, "layout", data)
}

// renderPartial executes one named template of page, for htmx swaps.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, status int, page, name string, data any) {
	s.execute(w, r, status, page, name, data)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, status int, page, name string, data any) {
	t, ok := s.templates[page]
	if !ok {
		s.logger.ErrorContext(r.Context(), "Unknown template", "template", page)
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err, "template", page, "name", name,
			log.FieldErrorType, log.ErrorTypeInternal)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests, please slow down").Write(w)
}

// watchSessions records sign-ins and sign-outs until Shutdown.
func (s *Server) watchSessions() {
	events, cancel := s.auth.Subscribe(16)
	s.stopSessions = cancel
	go func() {
		defer close(s.sessionsDone)
		for ev := range events {
			s.metrics.SessionEvent(string(ev.Kind))
			s.logger.Info("Session changed",
				"kind", ev.Kind,
				log.FieldUserID, ev.Identity.UserID)
		}
	}()
}

// Shutdown stops background work and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
		s.stopSessions()
		select {
		case <-s.sessionsDone:
		case <-ctx.Done():
		}
	})
	return shutdownErr
}
