// Package directory is the user directory: lookups by phone number with a
// Redis cache in front of the record store.
package directory

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"collegepay/internal/apperr"
	"collegepay/internal/model"
)

// Records is the user part of the record store.
type Records interface {
	FindUsersByPhone(ctx context.Context, phone string) ([]model.User, error)
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	GetUser(ctx context.Context, id int64) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	CountUsersByRole(ctx context.Context, role model.Role) (int, error)
}

// Service answers user lookups.
type Service struct {
	records Records
	cache   *redis.Client
	ttl     time.Duration
}

// New builds a directory. A nil cache disables caching.
func New(records Records, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{records: records, cache: cache, ttl: ttl}
}

func phoneKey(phone string) string { return "users:phone:" + phone }

// FindByPhone returns every user registered under phone, oldest first.
func (s *Service) FindByPhone(ctx context.Context, phone string) ([]model.User, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, phoneKey(phone)).Result(); err == nil {
			var users []model.User
			if err := json.Unmarshal([]byte(cached), &users); err == nil {
				return users, nil
			}
		} else if err != redis.Nil {
			slog.Warn("FindByPhone(): cache read failed", "phone", phone, "error", err)
		}
	}

	users, err := s.records.FindUsersByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}

	// Misses are not cached so a new student is visible as soon as it is created.
	if s.cache != nil && len(users) > 0 {
		if data, err := json.Marshal(users); err == nil {
			if err := s.cache.Set(ctx, phoneKey(phone), data, s.ttl).Err(); err != nil {
				slog.Warn("FindByPhone(): cache write failed", "phone", phone, "error", err)
			}
		}
	}
	return users, nil
}

// Create registers a user and drops the cached entry for its phone number.
// A phone number holds at most one user.
func (s *Service) Create(ctx context.Context, u model.User) (model.User, error) {
	u.Name = strings.TrimSpace(u.Name)
	u.PhoneNumber = strings.TrimSpace(u.PhoneNumber)
	if u.Name == "" {
		return model.User{}, apperr.Validation("name is required")
	}
	if u.PhoneNumber == "" {
		return model.User{}, apperr.Validation("phone number is required")
	}
	if u.Role == "" {
		u.Role = model.RoleStudent
	}
	if !u.Role.Valid() {
		return model.User{}, apperr.Validation("unknown role %q", u.Role)
	}

	existing, err := s.records.FindUsersByPhone(ctx, u.PhoneNumber)
	if err != nil {
		return model.User{}, err
	}
	if len(existing) > 0 {
		s.invalidate(ctx, u.PhoneNumber)
		return model.User{}, apperr.Validation("phone number %s is already registered", u.PhoneNumber)
	}

	created, err := s.records.CreateUser(ctx, u)
	if err != nil {
		return model.User{}, err
	}
	s.invalidate(ctx, created.PhoneNumber)
	return created, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id int64) (model.User, error) {
	return s.records.GetUser(ctx, id)
}

// List returns every user.
func (s *Service) List(ctx context.Context) ([]model.User, error) {
	return s.records.ListUsers(ctx)
}

// CountByRole counts users holding role.
func (s *Service) CountByRole(ctx context.Context, role model.Role) (int, error) {
	return s.records.CountUsersByRole(ctx, role)
}

func (s *Service) invalidate(ctx context.Context, phone string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, phoneKey(phone)).Err(); err != nil {
		slog.Warn("invalidate(): cache delete failed", "phone", phone, "error", err)
	}
}
