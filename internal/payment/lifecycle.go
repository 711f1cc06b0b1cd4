package payment

import (
	"collegepay/internal/apperr"
	"collegepay/internal/model"
)

// CheckTransition validates moving a payment from one status to another.
// Pending payments may be completed or rejected, adjudicated payments may be
// reset to pending, and a move to the current status is allowed as a no-op.
// Completed and rejected never flip into each other directly.
func CheckTransition(from, to model.Status) error {
	if _, ok := model.ParseStatus(string(to)); !ok {
		return apperr.Validation("unknown status %q", to)
	}
	if from == to {
		return nil
	}
	switch from {
	case model.StatusPending:
		return nil
	case model.StatusCompleted, model.StatusRejected:
		if to == model.StatusPending {
			return nil
		}
	}
	return apperr.Validation("invalid transition from %s to %s", from, to)
}
