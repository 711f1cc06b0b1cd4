package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role is the access level of a user record.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// Status is the verification state of a payment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// ParseStatus maps s onto a known status.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusCompleted, StatusRejected:
		return st, true
	}
	return "", false
}

// Terminal reports whether s is an adjudicated state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// User is a student or administrator, keyed naturally by phone number.
type User struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phone_number"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// Event is a college event with a registration fee.
type Event struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Date        time.Time       `json:"date"`
	Fee         decimal.Decimal `json:"fee"`
	ImageURL    string          `json:"image_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Payment is a student's claim to have paid an event fee over UPI.
type Payment struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	EventID        int64           `json:"event_id"`
	Amount         decimal.Decimal `json:"amount"`
	TransactionRef string          `json:"transaction_id,omitempty"`
	Proof          string          `json:"proof,omitempty"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}

// PaymentView is a payment joined with its owner and event labels.
type PaymentView struct {
	Payment
	UserName    string `json:"user_name"`
	PhoneNumber string `json:"phone_number"`
	EventName   string `json:"event_name"`
}

// Stats are the dashboard counters.
type Stats struct {
	TotalStudents     int `json:"total_students"`
	TotalPayments     int `json:"total_payments"`
	CompletedPayments int `json:"completed_payments"`
	PendingPayments   int `json:"pending_payments"`
}

// Transition records one status change made by an administrator.
type Transition struct {
	ID        int64     `json:"id"`
	PaymentID int64     `json:"payment_id"`
	ActorID   int64     `json:"actor_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	At        time.Time `json:"at"`
}

// Account is a credential held by the authentication provider.
type Account struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	SecretHash  string    `json:"-"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}
