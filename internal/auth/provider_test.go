package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"collegepay/internal/apperr"
	"collegepay/internal/identity"
	"collegepay/internal/model"
	"collegepay/internal/store"
)

func newTestProvider() (*Provider, *store.Memory) {
	records := store.NewMemory()
	p := NewProvider(records, NewMemoryRevocations(), "collegepay", "test-key", time.Hour)
	p.cost = bcrypt.MinCost
	return p, records
}

func TestProvider_SignUpIsIdempotentlyRefused(t *testing.T) {
	p, records := newTestProvider()
	ctx := context.Background()
	handle := identity.EncodeHandle(model.RoleStudent, "9999900000")

	require.NoError(t, p.SignUp(ctx, handle, "secret", "Asha"))
	err := p.SignUp(ctx, handle, "secret", "Asha")
	assert.True(t, errors.Is(err, identity.ErrAccountExists))

	acct, err := records.GetAccountByHandle(ctx, handle)
	require.NoError(t, err)
	assert.NotEqual(t, "secret", acct.SecretHash)
}

func TestProvider_SignInCarriesPhoneAndRole(t *testing.T) {
	p, _ := newTestProvider()
	ctx := context.Background()
	handle := identity.EncodeHandle(model.RoleAdmin, "1112223333")
	require.NoError(t, p.SignUp(ctx, handle, "s3", "Dean"))

	s, err := p.SignIn(ctx, handle, "s3")
	require.NoError(t, err)
	assert.Equal(t, "1112223333", s.PhoneNumber)
	assert.Equal(t, model.RoleAdmin, s.Role)
	assert.NotEmpty(t, s.AccessToken)
	assert.NotEmpty(t, s.TokenID)

	current, err := p.CurrentSession(ctx, s.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, s.AccountID, current.AccountID)
	assert.Equal(t, "1112223333", current.Phone())
}

func TestProvider_SignInFailures(t *testing.T) {
	p, _ := newTestProvider()
	ctx := context.Background()
	require.NoError(t, p.SignUp(ctx, "student_1@collegeevent.app", "right", ""))

	_, err := p.SignIn(ctx, "student_1@collegeevent.app", "wrong")
	assert.True(t, errors.Is(err, apperr.ErrAuthentication))

	_, err = p.SignIn(ctx, "student_2@collegeevent.app", "right")
	assert.True(t, errors.Is(err, apperr.ErrAuthentication))

	_, err = p.CurrentSession(ctx, "not-a-token")
	assert.True(t, errors.Is(err, apperr.ErrAuthentication))
}

func TestProvider_SignOutRevokes(t *testing.T) {
	p, _ := newTestProvider()
	ctx := context.Background()
	require.NoError(t, p.SignUp(ctx, "student_1@collegeevent.app", "s", ""))
	s, err := p.SignIn(ctx, "student_1@collegeevent.app", "s")
	require.NoError(t, err)

	require.NoError(t, p.SignOut(ctx, s))
	_, err = p.CurrentSession(ctx, s.AccessToken)
	assert.True(t, errors.Is(err, apperr.ErrAuthentication))

	assert.NoError(t, p.SignOut(ctx, nil))
}

func TestRedisRevocations(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	r := NewRedisRevocations(db)
	ctx := context.Background()

	mock.ExpectSet("session:revoked:jti-1", 1, time.Hour).SetVal("OK")
	require.NoError(t, r.Revoke(ctx, "jti-1", time.Hour))

	mock.ExpectExists("session:revoked:jti-1").SetVal(1)
	revoked, err := r.Revoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mock.ExpectExists("session:revoked:jti-2").SetVal(0)
	revoked, err = r.Revoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	assert.NoError(t, mock.ExpectationsWereMet())
}
