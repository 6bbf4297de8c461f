package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestManager() *Manager {
	return NewManager(NewMemoryUsers(), "test-secret-test-secret-test-secret", time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterSignInResolve(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()

	sess, err := m.Register(ctx, " Alice@Example.com ", "correct horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if sess.Identity.Email != "alice@example.com" || sess.Token == "" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	id, err := m.Resolve(ctx, sess.Token)
	if err != nil || id != sess.Identity {
		t.Fatalf("resolve: id=%+v err=%v", id, err)
	}

	if _, err := m.Register(ctx, "alice@example.com", "another password"); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}

	if _, err := m.SignIn(ctx, "ALICE@example.com", "correct horse"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if _, err := m.SignIn(ctx, "alice@example.com", "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := m.SignIn(ctx, "nobody@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	if _, err := m.Register(ctx, "not-an-email", "long enough"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := m.Register(ctx, "bob@example.com", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestSignOutRevokesToken(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	sess, err := m.Register(ctx, "carol@example.com", "password123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.SignOut(ctx, sess.Token); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := m.Resolve(ctx, sess.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked token to be invalid, got %v", err)
	}
	// Signing out twice or with garbage is harmless
	if err := m.SignOut(ctx, sess.Token); err != nil {
		t.Fatalf("second sign out: %v", err)
	}
	if err := m.SignOut(ctx, "garbage"); err != nil {
		t.Fatalf("garbage sign out: %v", err)
	}
}

func TestResolveRejectsForeignAndExpiredTokens(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	other := NewJWTManager("another-secret", time.Hour)
	token, _, err := other.Generate(User{ID: "u1", Email: "x@example.com"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m.Resolve(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}

	expired := NewJWTManager("test-secret-test-secret-test-secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err = expired.Generate(User{ID: "u1", Email: "x@example.com"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m.Resolve(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
	if _, err := m.Resolve(ctx, ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestSubscribeReceivesSessionChanges(t *testing.T) {
	ctx := context.Background()
	m := newTestManager()
	events, cancel := m.Subscribe(4)
	defer cancel()

	sess, err := m.Register(ctx, "dave@example.com", "password123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.SignOut(ctx, sess.Token); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	want := []SessionEventKind{SessionSignedIn, SessionSignedOut}
	for _, kind := range want {
		select {
		case ev := <-events:
			if ev.Kind != kind || ev.Identity.Email != "dave@example.com" {
				t.Fatalf("unexpected event %+v, want %s", ev, kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", kind)
		}
	}

	cancel()
	if _, ok := <-events; ok {
		t.Fatalf("expected channel closed after cancel")
	}
	cancel()
}

func TestCloseEndsSubscriptions(t *testing.T) {
	m := newTestManager()
	events, cancel := m.Subscribe(1)
	m.Close()
	if _, ok := <-events; ok {
		t.Fatalf("expected closed channel")
	}
	cancel()

	late, _ := m.Subscribe(1)
	if _, ok := <-late; ok {
		t.Fatalf("expected subscription after Close to be closed")
	}
}
