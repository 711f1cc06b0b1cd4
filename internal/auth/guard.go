package auth

import (
	"context"
	"log/slog"

	"collegepay/internal/apperr"
	"collegepay/internal/identity"
	"collegepay/internal/model"
)

// Directory looks users up by phone number.
type Directory interface {
	FindByPhone(ctx context.Context, phone string) ([]model.User, error)
}

// Guard decides whether a session belongs to an administrator. It keeps no
// state between calls, so a changed session is always re-evaluated.
type Guard struct {
	users Directory
}

func NewGuard(users Directory) *Guard {
	return &Guard{users: users}
}

// IsAdmin reports whether the session's phone number has an admin record.
// Lookup failures count as "not admin".
func (g *Guard) IsAdmin(ctx context.Context, s *identity.Session) bool {
	phone := s.Phone()
	if phone == "" {
		return false
	}
	users, err := g.users.FindByPhone(ctx, phone)
	if err != nil {
		slog.Error("IsAdmin(): directory lookup failed", "phone", phone, "error", err)
		return false
	}
	for _, u := range users {
		if u.Role == model.RoleAdmin {
			return true
		}
	}
	return false
}

// Authorize returns nil for administrators, an authentication error for
// anonymous callers and an authorization error for everyone else.
func (g *Guard) Authorize(ctx context.Context, s *identity.Session) error {
	if s == nil {
		return apperr.Authentication("sign in required")
	}
	if !g.IsAdmin(ctx, s) {
		return apperr.Authorization("admin access required")
	}
	return nil
}

// Actor returns the admin user record acting through s.
func (g *Guard) Actor(ctx context.Context, s *identity.Session) (model.User, error) {
	if err := g.Authorize(ctx, s); err != nil {
		return model.User{}, err
	}
	users, err := g.users.FindByPhone(ctx, s.Phone())
	if err != nil {
		return model.User{}, err
	}
	for _, u := range users {
		if u.Role == model.RoleAdmin {
			return u, nil
		}
	}
	return model.User{}, apperr.Authorization("admin access required")
}
