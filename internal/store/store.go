// Package store is the record store behind users, events, payments,
// payment transitions and provider accounts. Two backends exist: Postgres
// and an in-process map used for development and tests.
//
// References between collections are not enforced. Payments may point at
// users or events that no longer exist and readers substitute labels.
package store

import (
	"context"
	"errors"

	"collegepay/internal/model"
)

// ErrConflict is returned when a unique key is already taken.
var ErrConflict = errors.New("store: conflict")

// Records is the full set of operations both backends provide.
type Records interface {
	FindUsersByPhone(ctx context.Context, phone string) ([]model.User, error)
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	GetUser(ctx context.Context, id int64) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	CountUsersByRole(ctx context.Context, role model.Role) (int, error)

	CreateEvent(ctx context.Context, e model.Event) (model.Event, error)
	GetEvent(ctx context.Context, id int64) (model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)

	CreatePayment(ctx context.Context, p model.Payment) (model.Payment, error)
	GetPayment(ctx context.Context, id int64) (model.Payment, error)
	ListPayments(ctx context.Context) ([]model.Payment, error)
	ListPaymentsByUser(ctx context.Context, userID int64) ([]model.Payment, error)
	CountPaymentsByStatus(ctx context.Context) (map[model.Status]int, error)
	UpdatePaymentProof(ctx context.Context, id int64, proof string) error
	RecordTransition(ctx context.Context, t model.Transition) (model.Transition, error)
	ListTransitions(ctx context.Context, paymentID int64) ([]model.Transition, error)

	CreateAccount(ctx context.Context, a model.Account) (model.Account, error)
	GetAccountByHandle(ctx context.Context, handle string) (model.Account, error)
}
