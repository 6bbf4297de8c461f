package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"budget/internal/auth"
	"budget/internal/log"
)

const sessionCookie = "budget_session"

type identityKey struct{}

// identityFrom returns the signed-in identity, or nil.
func identityFrom(ctx context.Context) *auth.Identity {
	id, _ := ctx.Value(identityKey{}).(*auth.Identity)
	return id
}

// withIdentity resolves the session cookie, when present, for every route.
// An invalid cookie is cleared and the request continues anonymously.
func (s *Server) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := s.auth.Resolve(r.Context(), c.Value)
		if err != nil {
			s.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, &id)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, id.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuth sends anonymous users to the sign-in page.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identityFrom(r.Context()) != nil {
			next(w, r)
			return
		}
		target := "/sign-in"
		if r.Method == http.MethodGet {
			target += "?next=" + url.QueryEscape(r.URL.RequestURI())
		}
		if isHTMX(r.Header) {
			NewHTMXResponse().Status(http.StatusUnauthorized).Redirect(target).Write(w)
			return
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// authForm is the sign-in and sign-up page model.
type authForm struct {
	Email string
	Next  string
	Error string
}

func (s *Server) handleSignInPage(w http.ResponseWriter, r *http.Request) {
	if identityFrom(r.Context()) != nil {
		http.Redirect(w, r, safeRedirect(r.URL.Query().Get("next"), "/expenses"), http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "sign_in.html", "Sign in", authForm{Next: r.URL.Query().Get("next")})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	form := authForm{
		Email: sanitizeInput(s.sanitizer, r.PostForm.Get("email")),
		Next:  r.PostForm.Get("next"),
	}

	sess, err := s.auth.SignIn(r.Context(), form.Email, r.PostForm.Get("password"))
	if err != nil {
		code := http.StatusInternalServerError
		form.Error = "Sign-in failed, please try again"
		if errors.Is(err, auth.ErrInvalidCredentials) {
			code = http.StatusUnauthorized
			form.Error = "Invalid email or password"
		} else {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Sign-in failed",
				log.FieldError, err, log.FieldOperation, log.OpSignIn)
		}
		s.render(w, r, code, "sign_in.html", "Sign in", form)
		return
	}

	s.setSessionCookie(w, sess)
	http.Redirect(w, r, safeRedirect(form.Next, "/expenses"), http.StatusSeeOther)
}

func (s *Server) handleSignUpPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "sign_up.html", "Create account", authForm{})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	form := authForm{Email: sanitizeInput(s.sanitizer, r.PostForm.Get("email"))}
	password := r.PostForm.Get("password")

	if password != r.PostForm.Get("confirm") {
		form.Error = "Passwords do not match"
		s.render(w, r, http.StatusUnprocessableEntity, "sign_up.html", "Create account", form)
		return
	}

	sess, err := s.auth.Register(r.Context(), form.Email, password)
	if err != nil {
		code := http.StatusUnprocessableEntity
		switch {
		case errors.Is(err, auth.ErrInvalidEmail):
			form.Error = "Please enter a valid email address"
		case errors.Is(err, auth.ErrWeakPassword):
			form.Error = "Password must be at least 8 characters"
		case errors.Is(err, auth.ErrEmailExists):
			code = http.StatusConflict
			form.Error = "An account with this email already exists"
		default:
			code = http.StatusInternalServerError
			form.Error = "Could not create the account, please try again"
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Sign-up failed",
				log.FieldError, err, log.FieldOperation, log.OpSignUp)
		}
		s.render(w, r, code, "sign_up.html", "Create account", form)
		return
	}

	s.setSessionCookie(w, sess)
	http.Redirect(w, r, "/expenses", http.StatusSeeOther)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		if err := s.auth.SignOut(r.Context(), c.Value); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Sign-out failed",
				log.FieldError, err, log.FieldOperation, log.OpSignOut)
		}
	}
	s.clearSessionCookie(w)
	if isHTMX(r.Header) {
		NewHTMXResponse().Redirect("/").Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
