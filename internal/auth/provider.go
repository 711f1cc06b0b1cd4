// Package auth is the authentication provider (accounts, bcrypt secrets and
// JWT sessions), the admin guard and the gin middleware around both.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"collegepay/internal/apperr"
	"collegepay/internal/identity"
	"collegepay/internal/model"
	"collegepay/internal/store"
)

// Accounts persists provider accounts.
type Accounts interface {
	CreateAccount(ctx context.Context, a model.Account) (model.Account, error)
	GetAccountByHandle(ctx context.Context, handle string) (model.Account, error)
}

// Revocations tracks signed-out token ids until they expire.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	Revoked(ctx context.Context, tokenID string) (bool, error)
}

// Provider issues and validates sessions for provider accounts.
type Provider struct {
	accounts Accounts
	revoked  Revocations
	issuer   string
	key      string
	ttl      time.Duration
	cost     int
}

// NewProvider builds a provider signing HS256 tokens with key.
func NewProvider(accounts Accounts, revoked Revocations, issuer, key string, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Provider{accounts: accounts, revoked: revoked, issuer: issuer, key: key, ttl: ttl, cost: bcrypt.DefaultCost}
}

// SignUp creates an account. A taken handle returns identity.ErrAccountExists.
func (p *Provider) SignUp(ctx context.Context, handle, secret, displayName string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), p.cost)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}
	_, err = p.accounts.CreateAccount(ctx, model.Account{Handle: handle, SecretHash: string(hash), DisplayName: displayName})
	if errors.Is(err, store.ErrConflict) {
		return identity.ErrAccountExists
	}
	return err
}

// SignIn checks the secret and issues a session.
func (p *Provider) SignIn(ctx context.Context, handle, secret string) (*identity.Session, error) {
	acct, err := p.accounts.GetAccountByHandle(ctx, handle)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Authentication("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.SecretHash), []byte(secret)); err != nil {
		return nil, apperr.Authentication("invalid credentials")
	}

	var role, phone string
	if r, ph, err := identity.DecodeHandle(handle); err == nil {
		role, phone = string(r), ph
	}
	token, claims, err := Issue(acct.ID, acct.Handle, phone, role, p.issuer, p.key, p.ttl)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s := sessionFromClaims(claims)
	s.AccessToken = token
	return s, nil
}

// CurrentSession returns the session behind an access token.
func (p *Provider) CurrentSession(ctx context.Context, token string) (*identity.Session, error) {
	claims, err := Parse(token, p.key, p.issuer)
	if err != nil {
		return nil, apperr.Authentication("invalid token")
	}
	revoked, err := p.revoked.Revoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, apperr.Authentication("session signed out")
	}
	s := sessionFromClaims(claims)
	s.AccessToken = token
	return s, nil
}

// SignOut revokes the session's token for the rest of its lifetime.
func (p *Provider) SignOut(ctx context.Context, s *identity.Session) error {
	if s == nil || s.TokenID == "" {
		return nil
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return p.revoked.Revoke(ctx, s.TokenID, ttl)
}

func sessionFromClaims(c Claims) *identity.Session {
	s := &identity.Session{
		AccountID:   c.Subject,
		Handle:      c.Handle,
		PhoneNumber: c.Phone,
		Role:        model.Role(c.Role),
		TokenID:     c.ID,
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s
}

// RedisRevocations stores revoked token ids as session:revoked:<jti>.
type RedisRevocations struct {
	client *redis.Client
}

func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client}
}

func revokedKey(tokenID string) string { return "session:revoked:" + tokenID }

func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return r.client.Set(ctx, revokedKey(tokenID), 1, ttl).Err()
}

func (r *RedisRevocations) Revoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryRevocations is the in-process Revocations.
type MemoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{revoked: make(map[string]time.Time)}
}

func (m *MemoryRevocations) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, until := range m.revoked {
		if now.After(until) {
			delete(m.revoked, id)
		}
	}
	m.revoked[tokenID] = now.Add(ttl)
	return nil
}

func (m *MemoryRevocations) Revoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.revoked[tokenID]
	return ok && time.Now().Before(until), nil
}
