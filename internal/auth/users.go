package auth

import (
	"context"
	"strings"
	"sync"
)

// MemoryUsers is an in-process UserStore used by the memory backend and tests.
type MemoryUsers struct {
	mu      sync.RWMutex
	byEmail map[string]User
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{byEmail: make(map[string]User)}
}

func (s *MemoryUsers) CreateUser(_ context.Context, u User) error {
	key := strings.ToLower(u.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[key]; ok {
		return ErrEmailExists
	}
	s.byEmail[key] = u
	return nil
}

func (s *MemoryUsers) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}
