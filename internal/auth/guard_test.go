package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collegepay/internal/apperr"
	"collegepay/internal/identity"
	"collegepay/internal/model"
	"collegepay/internal/store"
)

type usersByPhone struct {
	*store.Memory
	err error
}

func (u usersByPhone) FindByPhone(ctx context.Context, phone string) ([]model.User, error) {
	if u.err != nil {
		return nil, u.err
	}
	return u.FindUsersByPhone(ctx, phone)
}

func TestGuard_IsAdmin(t *testing.T) {
	ctx := context.Background()
	records := store.NewMemory()
	_, _ = records.CreateUser(ctx, model.User{Name: "Dean", PhoneNumber: "1", Role: model.RoleAdmin})
	_, _ = records.CreateUser(ctx, model.User{Name: "Asha", PhoneNumber: "2"})
	g := NewGuard(usersByPhone{Memory: records})

	assert.False(t, g.IsAdmin(ctx, nil))
	assert.True(t, g.IsAdmin(ctx, &identity.Session{PhoneNumber: "1"}))
	assert.True(t, g.IsAdmin(ctx, &identity.Session{Handle: "admin_1@collegeevent.app"}))
	assert.False(t, g.IsAdmin(ctx, &identity.Session{PhoneNumber: "2"}))
	assert.False(t, g.IsAdmin(ctx, &identity.Session{PhoneNumber: "3"}))
	assert.False(t, g.IsAdmin(ctx, &identity.Session{Handle: "garbage"}))
}

func TestGuard_FailsClosed(t *testing.T) {
	g := NewGuard(usersByPhone{Memory: store.NewMemory(), err: errors.New("db down")})
	assert.False(t, g.IsAdmin(context.Background(), &identity.Session{PhoneNumber: "1"}))
}

func TestGuard_ReevaluatesPerSession(t *testing.T) {
	ctx := context.Background()
	records := store.NewMemory()
	_, _ = records.CreateUser(ctx, model.User{Name: "Dean", PhoneNumber: "1", Role: model.RoleAdmin})
	g := NewGuard(usersByPhone{Memory: records})

	assert.True(t, g.IsAdmin(ctx, &identity.Session{PhoneNumber: "1"}))
	assert.False(t, g.IsAdmin(ctx, &identity.Session{PhoneNumber: "2"}))
	assert.True(t, g.IsAdmin(ctx, &identity.Session{PhoneNumber: "1"}))
}

func TestGuard_AuthorizeAndActor(t *testing.T) {
	ctx := context.Background()
	records := store.NewMemory()
	dean, _ := records.CreateUser(ctx, model.User{Name: "Dean", PhoneNumber: "1", Role: model.RoleAdmin})
	g := NewGuard(usersByPhone{Memory: records})

	assert.True(t, errors.Is(g.Authorize(ctx, nil), apperr.ErrAuthentication))
	assert.True(t, errors.Is(g.Authorize(ctx, &identity.Session{PhoneNumber: "9"}), apperr.ErrAuthorization))

	actor, err := g.Actor(ctx, &identity.Session{PhoneNumber: "1"})
	require.NoError(t, err)
	assert.Equal(t, dean.ID, actor.ID)
}
