package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
		msg  string
	}{
		{"validation", Validation("phone number is required"), ErrValidation, "validation error: phone number is required"},
		{"authentication", Authentication("no matching admin record"), ErrAuthentication, "authentication error: no matching admin record"},
		{"not found", NotFound("payment %d", 42), ErrNotFound, "not found: payment 42"},
		{"authorization", Authorization("admin access required"), ErrAuthorization, "authorization error: admin access required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.kind)
			assert.EqualError(t, tt.err, tt.msg)
			assert.True(t, Is(tt.err))
		})
	}
}

func TestIs_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("submit payment: %w", NotFound("user"))
	assert.True(t, Is(err))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.False(t, Is(errors.New("connection refused")))
	assert.False(t, Is(nil))
}
