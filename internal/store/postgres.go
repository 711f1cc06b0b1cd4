package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"collegepay/internal/apperr"
	"collegepay/internal/model"
)

const uniqueViolation = "23505"

// Postgres persists records in Postgres.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a repo.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const userColumns = `id, name, phone_number, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.PhoneNumber, &u.Role, &u.CreatedAt)
	return u, err
}

// FindUsersByPhone returns every user with the phone number, oldest first.
func (p *Postgres) FindUsersByPhone(ctx context.Context, phone string) ([]model.User, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone_number = $1 ORDER BY id`, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// CreateUser inserts a user and returns it with its id.
func (p *Postgres) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	if u.Role == "" {
		u.Role = model.RoleStudent
	}
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO users (name, phone_number, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, u.Name, u.PhoneNumber, u.Role)
	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// GetUser returns a single user by id.
func (p *Postgres) GetUser(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, apperr.NotFound("user %d", id)
	}
	return u, err
}

// ListUsers returns all users.
func (p *Postgres) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// CountUsersByRole counts users holding role.
func (p *Postgres) CountUsersByRole(ctx context.Context, role model.Role) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&n)
	return n, err
}

const eventColumns = `id, name, description, event_date, fee, image_url, created_at`

func scanEvent(row interface{ Scan(...any) error }) (model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Date, &e.Fee, &e.ImageURL, &e.CreatedAt)
	return e, err
}

// CreateEvent inserts an event.
func (p *Postgres) CreateEvent(ctx context.Context, e model.Event) (model.Event, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO events (name, description, event_date, fee, image_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, e.Name, e.Description, e.Date, e.Fee, e.ImageURL)
	if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
		return model.Event{}, err
	}
	return e, nil
}

// GetEvent returns a single event by id.
func (p *Postgres) GetEvent(ctx context.Context, id int64) (model.Event, error) {
	e, err := scanEvent(p.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, apperr.NotFound("event %d", id)
	}
	return e, err
}

// ListEvents returns events ordered by date.
func (p *Postgres) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY event_date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

const paymentColumns = `id, user_id, event_id, amount, transaction_id, proof, status, created_at`

func scanPayment(row interface{ Scan(...any) error }) (model.Payment, error) {
	var pay model.Payment
	err := row.Scan(&pay.ID, &pay.UserID, &pay.EventID, &pay.Amount, &pay.TransactionRef, &pay.Proof, &pay.Status, &pay.CreatedAt)
	return pay, err
}

func (p *Postgres) queryPayments(ctx context.Context, query string, args ...any) ([]model.Payment, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.Payment
	for rows.Next() {
		pay, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, pay)
	}
	return res, rows.Err()
}

// CreatePayment writes a new payment.
func (p *Postgres) CreatePayment(ctx context.Context, pay model.Payment) (model.Payment, error) {
	if pay.Status == "" {
		pay.Status = model.StatusPending
	}
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO payments (user_id, event_id, amount, transaction_id, proof, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, pay.UserID, pay.EventID, pay.Amount, pay.TransactionRef, pay.Proof, pay.Status)
	if err := row.Scan(&pay.ID, &pay.CreatedAt); err != nil {
		return model.Payment{}, err
	}
	return pay, nil
}

// GetPayment returns a single payment by id.
func (p *Postgres) GetPayment(ctx context.Context, id int64) (model.Payment, error) {
	pay, err := scanPayment(p.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Payment{}, apperr.NotFound("payment %d", id)
	}
	return pay, err
}

// ListPayments returns all payments, newest first.
func (p *Postgres) ListPayments(ctx context.Context) ([]model.Payment, error) {
	return p.queryPayments(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY created_at DESC, id DESC`)
}

// ListPaymentsByUser returns the payments owned by userID, newest first.
func (p *Postgres) ListPaymentsByUser(ctx context.Context, userID int64) ([]model.Payment, error) {
	return p.queryPayments(ctx, `SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

// CountPaymentsByStatus counts payments per status without loading them.
func (p *Postgres) CountPaymentsByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM payments GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[model.Status]int{}
	for rows.Next() {
		var (
			status model.Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// UpdatePaymentProof replaces the stored proof reference.
func (p *Postgres) UpdatePaymentProof(ctx context.Context, id int64, proof string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE payments SET proof = $2 WHERE id = $1`, id, proof)
	if err != nil {
		return err
	}
	return expectOne(res, "payment", id)
}

// RecordTransition sets the payment status and appends the log row in one transaction.
func (p *Postgres) RecordTransition(ctx context.Context, t model.Transition) (model.Transition, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Transition{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE payments SET status = $2 WHERE id = $1`, t.PaymentID, t.To)
	if err != nil {
		return model.Transition{}, err
	}
	if err := expectOne(res, "payment", t.PaymentID); err != nil {
		return model.Transition{}, err
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO payment_transitions (payment_id, actor_id, from_status, to_status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, t.PaymentID, t.ActorID, t.From, t.To)
	if err := row.Scan(&t.ID, &t.At); err != nil {
		return model.Transition{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Transition{}, err
	}
	return t, nil
}

// ListTransitions returns the log of a payment, newest first.
func (p *Postgres) ListTransitions(ctx context.Context, paymentID int64) ([]model.Transition, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, payment_id, actor_id, from_status, to_status, created_at
		FROM payment_transitions
		WHERE payment_id = $1
		ORDER BY created_at DESC, id DESC
	`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.Transition
	for rows.Next() {
		var t model.Transition
		if err := rows.Scan(&t.ID, &t.PaymentID, &t.ActorID, &t.From, &t.To, &t.At); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// CreateAccount stores a provider account. A taken handle yields ErrConflict.
func (p *Postgres) CreateAccount(ctx context.Context, a model.Account) (model.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO auth_accounts (id, handle, secret_hash, display_name)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, a.ID, a.Handle, a.SecretHash, a.DisplayName)
	if err := row.Scan(&a.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.Account{}, fmt.Errorf("%w: handle %s", ErrConflict, a.Handle)
		}
		return model.Account{}, err
	}
	return a, nil
}

// GetAccountByHandle looks an account up by handle.
func (p *Postgres) GetAccountByHandle(ctx context.Context, handle string) (model.Account, error) {
	var a model.Account
	err := p.db.QueryRowContext(ctx, `
		SELECT id, handle, secret_hash, display_name, created_at
		FROM auth_accounts WHERE handle = $1
	`, handle).Scan(&a.ID, &a.Handle, &a.SecretHash, &a.DisplayName, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, apperr.NotFound("account %s", handle)
	}
	return a, err
}

func expectOne(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("%s %d", kind, id)
	}
	return nil
}
