package identity

import (
	"time"

	"collegepay/internal/model"
)

// Session is the signed-in identity passed explicitly to every operation
// that acts on behalf of a caller.
type Session struct {
	AccountID   string
	Handle      string
	PhoneNumber string
	Role        model.Role
	TokenID     string
	AccessToken string
	ExpiresAt   time.Time
}

// Phone returns the session's phone number, decoding the handle when the
// token carried none.
func (s *Session) Phone() string {
	if s == nil {
		return ""
	}
	if s.PhoneNumber != "" {
		return s.PhoneNumber
	}
	if _, phone, err := DecodeHandle(s.Handle); err == nil {
		return phone
	}
	return ""
}
