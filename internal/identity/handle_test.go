package identity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collegepay/internal/apperr"
	"collegepay/internal/model"
)

func TestEncodeHandle(t *testing.T) {
	assert.Equal(t, "admin_1112223333@collegeevent.app", EncodeHandle(model.RoleAdmin, "1112223333"))
	assert.Equal(t, "student_9999900000@collegeevent.app", EncodeHandle(model.RoleStudent, "9999900000"))
	assert.Equal(t, EncodeHandle(model.RoleStudent, "42"), EncodeHandle(model.RoleStudent, "42"))
}

func TestDecodeHandle_RoundTrip(t *testing.T) {
	for _, role := range []model.Role{model.RoleAdmin, model.RoleStudent} {
		for _, phone := range []string{"9999900000", "+91 98765", "12_34"} {
			gotRole, gotPhone, err := DecodeHandle(EncodeHandle(role, phone))
			require.NoError(t, err)
			assert.Equal(t, role, gotRole)
			assert.Equal(t, phone, gotPhone)
		}
	}
}

func TestDecodeHandle_Rejects(t *testing.T) {
	tests := []string{
		"",
		"admin_123@example.com",
		"admin123@collegeevent.app",
		"faculty_123@collegeevent.app",
		"student_@collegeevent.app",
	}
	for _, handle := range tests {
		_, _, err := DecodeHandle(handle)
		assert.True(t, errors.Is(err, apperr.ErrValidation), handle)
	}
}

func TestDeriveSecret(t *testing.T) {
	assert.Equal(t, "secure_9999900000_password", DeriveSecret("9999900000"))
}

func TestSession_Phone(t *testing.T) {
	var nilSession *Session
	assert.Empty(t, nilSession.Phone())

	assert.Equal(t, "1", (&Session{PhoneNumber: "1", Handle: "admin_2@collegeevent.app"}).Phone())
	assert.Equal(t, "2", (&Session{Handle: "admin_2@collegeevent.app"}).Phone())
	assert.Empty(t, (&Session{Handle: "someone@else.org"}).Phone())
}
