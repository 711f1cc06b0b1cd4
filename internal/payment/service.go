// Package payment manages a payment from student submission through admin
// adjudication.
package payment

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"

	"collegepay/internal/apperr"
	"collegepay/internal/identity"
	"collegepay/internal/metrics"
	"collegepay/internal/model"
	"collegepay/internal/queue"
	"collegepay/internal/report"
)

// Records is the part of the record store payments need.
type Records interface {
	GetEvent(ctx context.Context, id int64) (model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	CreatePayment(ctx context.Context, p model.Payment) (model.Payment, error)
	GetPayment(ctx context.Context, id int64) (model.Payment, error)
	ListPayments(ctx context.Context) ([]model.Payment, error)
	ListPaymentsByUser(ctx context.Context, userID int64) ([]model.Payment, error)
	UpdatePaymentProof(ctx context.Context, id int64, proof string) error
	RecordTransition(ctx context.Context, t model.Transition) (model.Transition, error)
	ListTransitions(ctx context.Context, paymentID int64) ([]model.Transition, error)
}

// Users resolves session owners.
type Users interface {
	FindByPhone(ctx context.Context, phone string) ([]model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

// Guard admits administrators.
type Guard interface {
	Actor(ctx context.Context, s *identity.Session) (model.User, error)
}

// Publisher hands work to the background worker.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Service is the payment lifecycle manager.
type Service struct {
	records       Records
	users         Users
	guard         Guard
	publisher     Publisher
	maxProofBytes int
}

// NewService wires the manager. A nil publisher disables background work.
func NewService(records Records, users Users, guard Guard, publisher Publisher, maxProofBytes int) *Service {
	if maxProofBytes <= 0 {
		maxProofBytes = 5 << 20
	}
	return &Service{records: records, users: users, guard: guard, publisher: publisher, maxProofBytes: maxProofBytes}
}

// SubmitRequest is a student's payment claim. At least one of TransactionRef
// and Proof must be set.
type SubmitRequest struct {
	EventID        int64
	TransactionRef string
	Proof          string
}

// Receipt confirms a submission.
type Receipt struct {
	Payment   model.Payment `json:"payment"`
	EventName string        `json:"event_name"`
}

// Dashboard is the admin view of all payments.
type Dashboard struct {
	Payments []model.PaymentView `json:"payments"`
	Stats    model.Stats         `json:"stats"`
}

// Submit records a pending payment owned by the session's user. The amount is
// the event's fee at the time of submission.
func (s *Service) Submit(ctx context.Context, sess *identity.Session, req SubmitRequest) (Receipt, error) {
	ref := strings.TrimSpace(req.TransactionRef)
	proof := strings.TrimSpace(req.Proof)
	if ref == "" && proof == "" {
		return Receipt{}, apperr.Validation("a transaction id or a payment screenshot is required")
	}
	if ProofSize(proof) > s.maxProofBytes {
		return Receipt{}, apperr.Validation("payment screenshot is larger than %d bytes", s.maxProofBytes)
	}

	owner, err := s.owner(ctx, sess)
	if err != nil {
		return Receipt{}, err
	}
	event, err := s.records.GetEvent(ctx, req.EventID)
	if err != nil {
		return Receipt{}, err
	}

	p, err := s.records.CreatePayment(ctx, model.Payment{
		UserID:         owner.ID,
		EventID:        event.ID,
		Amount:         event.Fee,
		TransactionRef: ref,
		Proof:          proof,
		Status:         model.StatusPending,
	})
	if err != nil {
		return Receipt{}, err
	}
	metrics.TrackSubmission()

	if strings.HasPrefix(p.Proof, "data:") {
		s.publish(ctx, queue.TypeProofUpload, queue.ProofUpload{PaymentID: p.ID})
	}
	return Receipt{Payment: p, EventName: event.Name}, nil
}

// Transition moves a payment to target on behalf of an administrator. Only
// the status changes. Moving to the current status changes nothing.
func (s *Service) Transition(ctx context.Context, sess *identity.Session, paymentID int64, target model.Status) (model.Payment, error) {
	actor, err := s.guard.Actor(ctx, sess)
	if err != nil {
		return model.Payment{}, err
	}
	p, err := s.records.GetPayment(ctx, paymentID)
	if err != nil {
		return model.Payment{}, err
	}
	if err := CheckTransition(p.Status, target); err != nil {
		return model.Payment{}, err
	}
	if p.Status == target {
		return p, nil
	}

	from := p.Status
	if _, err := s.records.RecordTransition(ctx, model.Transition{
		PaymentID: p.ID,
		ActorID:   actor.ID,
		From:      from,
		To:        target,
	}); err != nil {
		return model.Payment{}, err
	}
	p.Status = target
	metrics.TrackTransition(from, target)
	slog.Info("payment status changed", "payment_id", p.ID, "actor_id", actor.ID, "from", from, "to", target)

	status := queue.PaymentStatus{PaymentID: p.ID, UserID: p.UserID, EventID: p.EventID, From: from, To: target}
	if event, err := s.records.GetEvent(ctx, p.EventID); err == nil {
		status.EventName = event.Name
	} else {
		status.EventName = report.UnknownEvent
	}
	s.publish(ctx, queue.TypePaymentStatus, status)
	return p, nil
}

// ListForUser returns the session owner's payments with event names.
func (s *Service) ListForUser(ctx context.Context, sess *identity.Session) ([]model.PaymentView, error) {
	owner, err := s.owner(ctx, sess)
	if err != nil {
		return nil, err
	}
	payments, err := s.records.ListPaymentsByUser(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	events, err := s.records.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	return report.Join([]model.User{owner}, events, payments), nil
}

// ListAll returns every payment joined with user and event details, the
// dashboard counters over the full set, and f applied to the rows.
func (s *Service) ListAll(ctx context.Context, sess *identity.Session, f report.Filter) (Dashboard, error) {
	if _, err := s.guard.Actor(ctx, sess); err != nil {
		return Dashboard{}, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	events, err := s.records.ListEvents(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	payments, err := s.records.ListPayments(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Payments: f.Apply(report.Join(users, events, payments)),
		Stats:    report.Summarize(users, payments),
	}, nil
}

// History returns the status changes of a payment, newest first.
func (s *Service) History(ctx context.Context, sess *identity.Session, paymentID int64) ([]model.Transition, error) {
	if _, err := s.guard.Actor(ctx, sess); err != nil {
		return nil, err
	}
	if _, err := s.records.GetPayment(ctx, paymentID); err != nil {
		return nil, err
	}
	return s.records.ListTransitions(ctx, paymentID)
}

// Get returns a payment by id.
func (s *Service) Get(ctx context.Context, paymentID int64) (model.Payment, error) {
	return s.records.GetPayment(ctx, paymentID)
}

// AttachProofURL swaps an inline proof for its stored location.
func (s *Service) AttachProofURL(ctx context.Context, paymentID int64, url string) error {
	return s.records.UpdatePaymentProof(ctx, paymentID, url)
}

// owner resolves the session to the first user registered under its phone number.
func (s *Service) owner(ctx context.Context, sess *identity.Session) (model.User, error) {
	if sess == nil {
		return model.User{}, apperr.Authentication("sign in required")
	}
	phone := sess.Phone()
	if phone == "" {
		return model.User{}, apperr.NotFound("no user for this session")
	}
	users, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		return model.User{}, err
	}
	if len(users) == 0 {
		return model.User{}, apperr.NotFound("no user registered for phone %s", phone)
	}
	return users[0], nil
}

// ProofSize is the size of the screenshot a proof carries. Inline base64 data
// URLs count their decoded bytes; anything else counts as written.
func ProofSize(proof string) int {
	if !strings.HasPrefix(proof, "data:") {
		return len(proof)
	}
	_, payload, ok := strings.Cut(proof, ";base64,")
	if !ok {
		return len(proof)
	}
	padding := len(payload) - len(strings.TrimRight(payload, "="))
	return base64.StdEncoding.DecodedLen(len(payload)) - padding
}

func (s *Service) publish(ctx context.Context, msgType string, payload any) {
	if s.publisher == nil {
		return
	}
	msg, err := queue.NewMessage(msgType, payload)
	if err != nil {
		slog.Error("publish(): encode failed", "type", msgType, "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		slog.Error("publish(): queue publish failed", "type", msgType, "error", err)
	}
}
