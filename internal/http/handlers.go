package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"budget/internal/core"
	"budget/internal/log"
)

const (
	themeCookie = "theme"
	themeLight  = "light"
	themeDark   = "dark"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady reports not_ready when templates are missing or the store
// does not answer a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if len(s.templates) == 0 {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.pinger == nil:
		checks["store"] = "not_checked"
	default:
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness store ping failed", log.FieldError, err)
			checks["store"] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// overviewView is the totals panel.
type overviewView struct {
	Overview core.Overview
	Error    string
}

func (s *Server) loadOverview(r *http.Request) (overviewView, int) {
	ov, _, err := s.expenses.Overview(r.Context())
	if err != nil {
		code, msg := StoreErrorStatus(err)
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to load overview",
			log.FieldError, err, log.FieldOperation, log.OpList)
		return overviewView{Error: msg}, code
	}
	return overviewView{Overview: ov}, http.StatusOK
}

// handleOverview renders the public budget overview page.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	view, code := s.loadOverview(r)
	s.render(w, r, code, "overview.html", "Budget Overview", view)
}

// handleOverviewPanel renders only the totals, refreshed by htmx after a
// create or delete.
func (s *Server) handleOverviewPanel(w http.ResponseWriter, r *http.Request) {
	view, code := s.loadOverview(r)
	s.renderPartial(w, r, code, "overview.html", "overview_panel", view)
}

// themeFromRequest returns the stored theme, light by default.
func themeFromRequest(r *http.Request) string {
	if c, err := r.Cookie(themeCookie); err == nil && c.Value == themeDark {
		return themeDark
	}
	return themeLight
}

// handleTheme flips the light/dark cookie and sends the user back.
func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	next := themeDark
	if themeFromRequest(r) == themeDark {
		next = themeLight
	}
	http.SetCookie(w, &http.Cookie{
		Name:     themeCookie,
		Value:    next,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	if isHTMX(r.Header) {
		NewHTMXResponse().Header("HX-Refresh", "true").Write(w)
		return
	}
	back := "/"
	if ref := r.Header.Get("Referer"); ref != "" {
		if u, err := r.URL.Parse(ref); err == nil && u.Host == r.Host {
			back = safeRedirect(u.Path, "/")
		}
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}
