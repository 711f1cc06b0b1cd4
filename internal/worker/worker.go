// Package worker processes queued payment work: moving inline screenshots
// into image storage and notifying students about decisions.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"collegepay/internal/cloudinary"
	"collegepay/internal/metrics"
	"collegepay/internal/model"
	"collegepay/internal/notify"
	"collegepay/internal/queue"
)

// Payments reads and updates payments.
type Payments interface {
	Get(ctx context.Context, paymentID int64) (model.Payment, error)
	AttachProofURL(ctx context.Context, paymentID int64, url string) error
}

// Uploader stores screenshots.
type Uploader interface {
	UploadProof(ctx context.Context, paymentID int64, dataURL string) (*cloudinary.UploadResult, error)
}

// Processor handles queue messages.
type Processor struct {
	payments Payments
	uploader Uploader
	notifier notify.Notifier
}

// NewProcessor wires a processor. A nil uploader leaves proofs inline; a nil
// notifier logs notifications instead.
func NewProcessor(payments Payments, uploader Uploader, notifier notify.Notifier) *Processor {
	if notifier == nil {
		notifier = notify.Log{}
	}
	return &Processor{payments: payments, uploader: uploader, notifier: notifier}
}

// Run consumes q until ctx is done or the queue closes.
func (p *Processor) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init failed: %w", err)
	}
	slog.Info("worker started, waiting for messages")
	for msg := range messages {
		err := p.Handle(ctx, msg)
		metrics.TrackMessage(msg.Type, err == nil)
		if err != nil {
			slog.Error("Run(): message failed", "id", msg.ID, "type", msg.Type, "error", err)
		}
	}
	slog.Info("worker stopped")
	return nil
}

// Handle processes one message. Unknown types are ignored.
func (p *Processor) Handle(ctx context.Context, msg queue.Message) error {
	switch msg.Type {
	case queue.TypeProofUpload:
		var body queue.ProofUpload
		if err := msg.Decode(&body); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		return p.uploadProof(ctx, body.PaymentID)
	case queue.TypePaymentStatus:
		var body queue.PaymentStatus
		if err := msg.Decode(&body); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		return p.notifier.Notify(ctx, body.UserID, notify.Notification{
			Type:      "payment_status",
			PaymentID: body.PaymentID,
			EventID:   body.EventID,
			EventName: body.EventName,
			Status:    body.To,
			Previous:  body.From,
		})
	default:
		slog.Warn("Handle(): ignoring message", "id", msg.ID, "type", msg.Type)
		return nil
	}
}

func (p *Processor) uploadProof(ctx context.Context, paymentID int64) error {
	if p.uploader == nil {
		slog.Debug("uploadProof(): image storage not configured, keeping proof inline", "payment_id", paymentID)
		return nil
	}
	payment, err := p.payments.Get(ctx, paymentID)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(payment.Proof, "data:") {
		return nil
	}
	res, err := p.uploader.UploadProof(ctx, paymentID, payment.Proof)
	if err != nil {
		return err
	}
	if err := p.payments.AttachProofURL(ctx, paymentID, res.SecureURL); err != nil {
		return err
	}
	slog.Info("proof uploaded", "payment_id", paymentID, "url", res.SecureURL)
	return nil
}
