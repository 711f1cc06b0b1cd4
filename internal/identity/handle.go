package identity

import (
	"fmt"
	"strings"

	"collegepay/internal/apperr"
	"collegepay/internal/model"
)

// HandleVersion identifies the handle layout produced by EncodeHandle.
// Changing the layout orphans every provider account created before it.
const HandleVersion = 1

// HandleDomain is the domain part of every credential handle.
const HandleDomain = "collegeevent.app"

// EncodeHandle derives the provider credential handle for a role and phone.
func EncodeHandle(role model.Role, phone string) string {
	return fmt.Sprintf("%s_%s@%s", role, phone, HandleDomain)
}

// DecodeHandle reverses EncodeHandle.
func DecodeHandle(handle string) (model.Role, string, error) {
	local, domain, ok := strings.Cut(handle, "@")
	if !ok || domain != HandleDomain {
		return "", "", apperr.Validation("handle %q is not in the %s domain", handle, HandleDomain)
	}
	prefix, phone, ok := strings.Cut(local, "_")
	if !ok || phone == "" {
		return "", "", apperr.Validation("handle %q has no phone number", handle)
	}
	role := model.Role(prefix)
	if !role.Valid() {
		return "", "", apperr.Validation("handle %q has unknown role %q", handle, prefix)
	}
	return role, phone, nil
}

// DeriveSecret returns the provider secret for a phone number.
//
// The secret is a pure function of the phone number, so anyone who knows a
// phone number can sign in as its owner. Deployments should set
// AUTH_OTP_REQUIRED so that a one-time code gates every resolution.
func DeriveSecret(phone string) string {
	return "secure_" + phone + "_password"
}
