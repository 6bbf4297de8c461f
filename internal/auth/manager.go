package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Identity is the signed-in user as seen by request handlers.
type Identity struct {
	UserID string
	Email  string
}

// Session is an issued session token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Identity  Identity
}

type SessionEventKind string

const (
	SessionSignedIn  SessionEventKind = "signed_in"
	SessionSignedOut SessionEventKind = "signed_out"
)

// SessionEvent reports a change in authentication state.
type SessionEvent struct {
	Kind     SessionEventKind
	Identity Identity
	At       time.Time
}

// Manager issues, resolves and revokes sessions and publishes their changes
// to subscribers.
type Manager struct {
	users   UserStore
	tokens  *JWTManager
	revoked *cache.Cache
	logger  *slog.Logger

	mu     sync.Mutex
	subs   map[int]chan SessionEvent
	nextID int
	closed bool
}

func NewManager(users UserStore, secret string, ttl time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		users:   users,
		tokens:  NewJWTManager(secret, ttl),
		revoked: cache.New(ttl, 10*time.Minute),
		logger:  logger,
		subs:    make(map[int]chan SessionEvent),
	}
}

// Register creates an account and signs it in.
func (m *Manager) Register(ctx context.Context, email, password string) (Session, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if err := validatePassword(password); err != nil {
		return Session{}, err
	}
	if _, err := m.users.GetUserByEmail(ctx, email); err == nil {
		return Session{}, ErrEmailExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return Session{}, err
	}
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("failed to create user: %w", err)
	}
	m.logger.InfoContext(ctx, "User registered", "user_id", u.ID)
	return m.issue(u)
}

// SignIn checks credentials and issues a session. Unknown email and wrong
// password are indistinguishable to the caller.
func (m *Manager) SignIn(ctx context.Context, email, password string) (Session, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}
	u, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := checkPassword(u.PasswordHash, password); err != nil {
		return Session{}, err
	}
	return m.issue(u)
}

func (m *Manager) issue(u User) (Session, error) {
	token, claims, err := m.tokens.Generate(u)
	if err != nil {
		return Session{}, err
	}
	id := Identity{UserID: u.ID, Email: u.Email}
	m.publish(SessionEvent{Kind: SessionSignedIn, Identity: id, At: claims.IssuedAt.Time})
	return Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, Identity: id}, nil
}

// Resolve maps a session token to its identity. Revoked and expired tokens
// fail with ErrInvalidToken.
func (m *Manager) Resolve(_ context.Context, token string) (Identity, error) {
	claims, err := m.tokens.Validate(token)
	if err != nil {
		return Identity{}, err
	}
	if _, revoked := m.revoked.Get(claims.ID); revoked {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

// SignOut revokes token until it would have expired anyway. Signing out an
// invalid token is a no-op.
func (m *Manager) SignOut(ctx context.Context, token string) error {
	claims, err := m.tokens.Validate(token)
	if err != nil {
		return nil
	}
	if _, already := m.revoked.Get(claims.ID); already {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	m.revoked.Set(claims.ID, struct{}{}, ttl)
	m.logger.InfoContext(ctx, "User signed out", "user_id", claims.UserID)
	m.publish(SessionEvent{
		Kind:     SessionSignedOut,
		Identity: Identity{UserID: claims.UserID, Email: claims.Email},
		At:       time.Now().UTC(),
	})
	return nil
}

// Subscribe returns a channel of session events and a function that ends the
// subscription. Events are dropped for subscribers whose buffer is full.
func (m *Manager) Subscribe(buffer int) (<-chan SessionEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan SessionEvent, buffer)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextID
	m.nextID++
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
}

func (m *Manager) publish(ev SessionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.logger.Warn("Session subscriber full, dropping event", "subscriber", id, "kind", ev.Kind)
		}
	}
}

// Close ends every subscription.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}
