package queue

import "collegepay/internal/model"

// Message types.
const (
	TypeProofUpload   = "proof.upload"
	TypePaymentStatus = "payment.status"
)

// ProofUpload asks the worker to move an inline proof into image storage.
type ProofUpload struct {
	PaymentID int64 `json:"payment_id"`
}

// PaymentStatus tells the worker to notify a student about a decision.
type PaymentStatus struct {
	PaymentID int64        `json:"payment_id"`
	UserID    int64        `json:"user_id"`
	EventID   int64        `json:"event_id"`
	EventName string       `json:"event_name"`
	From      model.Status `json:"from"`
	To        model.Status `json:"to"`
}
