package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"collegepay/internal/apperr"
	"collegepay/internal/model"
)

// Memory is a map-backed record store for dev mode and tests.
// Create calls keep a caller-supplied non-zero id, which lets fixtures pin ids.
type Memory struct {
	mu          sync.RWMutex
	now         func() time.Time
	users       map[int64]model.User
	events      map[int64]model.Event
	payments    map[int64]model.Payment
	transitions []model.Transition
	accounts    map[string]model.Account
	seq         map[string]int64
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		now:      func() time.Time { return time.Now().UTC() },
		users:    make(map[int64]model.User),
		events:   make(map[int64]model.Event),
		payments: make(map[int64]model.Payment),
		accounts: make(map[string]model.Account),
		seq:      make(map[string]int64),
	}
}

func (m *Memory) nextID(table string, want int64) int64 {
	if want > 0 {
		if want > m.seq[table] {
			m.seq[table] = want
		}
		return want
	}
	m.seq[table]++
	return m.seq[table]
}

// FindUsersByPhone returns every user with the phone number, oldest first.
func (m *Memory) FindUsersByPhone(_ context.Context, phone string) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []model.User
	for _, u := range m.users {
		if u.PhoneNumber == phone {
			res = append(res, u)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// CreateUser stores u. An empty role defaults to student.
func (m *Memory) CreateUser(_ context.Context, u model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.Role == "" {
		u.Role = model.RoleStudent
	}
	u.ID = m.nextID("users", u.ID)
	u.CreatedAt = m.now()
	m.users[u.ID] = u
	return u, nil
}

// GetUser returns a NotFound error for an unknown id.
func (m *Memory) GetUser(_ context.Context, id int64) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, apperr.NotFound("user %d", id)
	}
	return u, nil
}

// ListUsers returns all users ordered by id.
func (m *Memory) ListUsers(_ context.Context) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// CountUsersByRole counts users holding role.
func (m *Memory) CountUsersByRole(_ context.Context, role model.Role) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, u := range m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// DeleteUser removes a user. Payments that reference it are left in place.
func (m *Memory) DeleteUser(_ context.Context, id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

// CreateEvent stores e and stamps its creation time.
func (m *Memory) CreateEvent(_ context.Context, e model.Event) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.nextID("events", e.ID)
	e.CreatedAt = m.now()
	m.events[e.ID] = e
	return e, nil
}

// GetEvent returns a NotFound error for an unknown id.
func (m *Memory) GetEvent(_ context.Context, id int64) (model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return model.Event{}, apperr.NotFound("event %d", id)
	}
	return e, nil
}

// ListEvents returns events by date, earliest first.
func (m *Memory) ListEvents(_ context.Context) ([]model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]model.Event, 0, len(m.events))
	for _, e := range m.events {
		res = append(res, e)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].Date.Equal(res[j].Date) {
			return res[i].Date.Before(res[j].Date)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

// DeleteEvent removes an event. Payments that reference it are left in place.
func (m *Memory) DeleteEvent(_ context.Context, id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, id)
}

// CreatePayment stores p as pending unless a status is already set.
func (m *Memory) CreatePayment(_ context.Context, p model.Payment) (model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Status == "" {
		p.Status = model.StatusPending
	}
	p.ID = m.nextID("payments", p.ID)
	p.CreatedAt = m.now()
	m.payments[p.ID] = p
	return p, nil
}

// GetPayment returns a NotFound error for an unknown id.
func (m *Memory) GetPayment(_ context.Context, id int64) (model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return model.Payment{}, apperr.NotFound("payment %d", id)
	}
	return p, nil
}

// ListPayments returns every payment, newest first.
func (m *Memory) ListPayments(_ context.Context) ([]model.Payment, error) {
	return m.listPayments(func(model.Payment) bool { return true }), nil
}

// ListPaymentsByUser returns the user's payments, newest first.
func (m *Memory) ListPaymentsByUser(_ context.Context, userID int64) ([]model.Payment, error) {
	return m.listPayments(func(p model.Payment) bool { return p.UserID == userID }), nil
}

func (m *Memory) listPayments(keep func(model.Payment) bool) []model.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []model.Payment
	for _, p := range m.payments {
		if keep(p) {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].ID > res[j].ID
	})
	return res
}

// CountPaymentsByStatus counts payments per status.
func (m *Memory) CountPaymentsByStatus(_ context.Context) (map[model.Status]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := map[model.Status]int{}
	for _, p := range m.payments {
		counts[p.Status]++
	}
	return counts, nil
}

// UpdatePaymentProof replaces the stored proof with a reference.
func (m *Memory) UpdatePaymentProof(_ context.Context, id int64, proof string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return apperr.NotFound("payment %d", id)
	}
	p.Proof = proof
	m.payments[id] = p
	return nil
}

// RecordTransition sets the payment's status and appends t to its history.
func (m *Memory) RecordTransition(_ context.Context, t model.Transition) (model.Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[t.PaymentID]
	if !ok {
		return model.Transition{}, apperr.NotFound("payment %d", t.PaymentID)
	}
	p.Status = t.To
	m.payments[p.ID] = p

	t.ID = m.nextID("transitions", 0)
	t.At = m.now()
	m.transitions = append(m.transitions, t)
	return t, nil
}

// ListTransitions returns the payment's history, latest first.
func (m *Memory) ListTransitions(_ context.Context, paymentID int64) ([]model.Transition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []model.Transition
	for i := len(m.transitions) - 1; i >= 0; i-- {
		if m.transitions[i].PaymentID == paymentID {
			res = append(res, m.transitions[i])
		}
	}
	return res, nil
}

// CreateAccount fails with ErrConflict when the handle is taken.
func (m *Memory) CreateAccount(_ context.Context, a model.Account) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.Handle]; ok {
		return model.Account{}, fmt.Errorf("%w: handle %s", ErrConflict, a.Handle)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = m.now()
	m.accounts[a.Handle] = a
	return a, nil
}

// GetAccountByHandle returns a NotFound error for an unknown handle.
func (m *Memory) GetAccountByHandle(_ context.Context, handle string) (model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[handle]
	if !ok {
		return model.Account{}, apperr.NotFound("account %s", handle)
	}
	return a, nil
}

var (
	_ Records = (*Memory)(nil)
	_ Records = (*Postgres)(nil)
)
