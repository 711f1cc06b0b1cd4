package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	token, claims, err := Issue("acct-1", "admin_1@collegeevent.app", "1", "admin", "collegepay", "k", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	parsed, err := Parse(token, "k", "collegepay")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", parsed.Subject)
	assert.Equal(t, "admin_1@collegeevent.app", parsed.Handle)
	assert.Equal(t, "1", parsed.Phone)
	assert.Equal(t, claims.ID, parsed.ID)
}

func TestParse_Rejects(t *testing.T) {
	token, _, err := Issue("acct-1", "h", "", "", "collegepay", "k", time.Hour)
	require.NoError(t, err)

	_, err = Parse(token, "other-key", "collegepay")
	assert.Error(t, err)

	_, err = Parse(token, "k", "someone-else")
	assert.Error(t, err)

	expired, _, err := Issue("acct-1", "h", "", "", "collegepay", "k", -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired, "k", "collegepay")
	assert.Error(t, err)

	noID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Handle:           "h",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "collegepay"},
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = Parse(noID, "k", "collegepay")
	assert.Error(t, err)
}
