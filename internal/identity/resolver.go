// Package identity maps a phone number and role onto an application user
// and a signed-in provider session.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"collegepay/internal/apperr"
	"collegepay/internal/model"
)

// ErrAccountExists is returned by Provider.SignUp for a taken handle.
var ErrAccountExists = errors.New("account already exists")

// Users is the part of the user directory the resolver needs.
type Users interface {
	FindByPhone(ctx context.Context, phone string) ([]model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
}

// Provider is the external authentication provider.
type Provider interface {
	SignUp(ctx context.Context, handle, secret, displayName string) error
	SignIn(ctx context.Context, handle, secret string) (*Session, error)
}

// Request is one login attempt.
type Request struct {
	Phone string
	Name  string
	Admin bool
	Code  string
}

// Result is a resolved identity.
type Result struct {
	User        model.User
	Handle      string
	DisplayName string
	Session     *Session
}

// Resolver turns login requests into sessions.
type Resolver struct {
	users    Users
	provider Provider
	codes    *Codes
}

// NewResolver builds a resolver. A nil codes disables the one-time code step.
func NewResolver(users Users, provider Provider, codes *Codes) *Resolver {
	return &Resolver{users: users, provider: provider, codes: codes}
}

// Resolve validates the request, finds or creates the user record and signs
// the caller in. A student record created here is kept even when sign-in fails.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Result, error) {
	phone := strings.TrimSpace(req.Phone)
	name := strings.TrimSpace(req.Name)
	if phone == "" {
		return Result{}, apperr.Validation("phone number is required")
	}
	if !req.Admin && name == "" {
		return Result{}, apperr.Validation("name is required")
	}

	users, err := r.users.FindByPhone(ctx, phone)
	if err != nil {
		return Result{}, err
	}
	admin, isAdmin := firstAdmin(users)
	if req.Admin && !isAdmin {
		return Result{}, apperr.Authentication("no matching admin record")
	}

	// The code is only consumed once the request could otherwise succeed.
	if r.codes != nil {
		ok, err := r.codes.Verify(ctx, phone, strings.TrimSpace(req.Code))
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Result{}, apperr.Authentication("invalid or expired code")
		}
	}

	var (
		user        model.User
		role        model.Role
		displayName string
	)
	if req.Admin {
		user, role, displayName = admin, model.RoleAdmin, admin.Name
	} else {
		role = model.RoleStudent
		displayName = studentDisplayName(name, users)
		if len(users) == 0 {
			user, err = r.users.Create(ctx, model.User{Name: name, PhoneNumber: phone, Role: model.RoleStudent})
			if err != nil {
				return Result{}, err
			}
		} else {
			user = users[0]
		}
	}

	handle := EncodeHandle(role, phone)
	secret := DeriveSecret(phone)

	if err := r.provider.SignUp(ctx, handle, secret, displayName); err != nil && !errors.Is(err, ErrAccountExists) {
		slog.Warn("Resolve(): sign-up failed, trying sign-in", "handle", handle, "error", err)
	}

	session, err := r.provider.SignIn(ctx, handle, secret)
	if err != nil {
		slog.Error("Resolve(): sign-in failed", "handle", handle, "user_id", user.ID, "error", err)
		return Result{}, apperr.Authentication("sign-in failed for %s", handle)
	}

	return Result{User: user, Handle: handle, DisplayName: displayName, Session: session}, nil
}

// IssueCode starts the one-time code step for phone.
func (r *Resolver) IssueCode(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return apperr.Validation("phone number is required")
	}
	if r.codes == nil {
		return apperr.Validation("one-time codes are not enabled")
	}
	return r.codes.Issue(ctx, phone)
}

// CodesRequired reports whether Resolve expects a one-time code.
func (r *Resolver) CodesRequired() bool {
	return r.codes != nil
}

func firstAdmin(users []model.User) (model.User, bool) {
	for _, u := range users {
		if u.Role == model.RoleAdmin {
			return u, true
		}
	}
	return model.User{}, false
}

func studentDisplayName(name string, existing []model.User) string {
	if name != "" {
		return name
	}
	if len(existing) > 0 && existing[0].Name != "" {
		return existing[0].Name
	}
	return "Student User"
}
