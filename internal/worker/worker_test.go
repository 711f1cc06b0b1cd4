package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collegepay/internal/apperr"
	"collegepay/internal/cloudinary"
	"collegepay/internal/model"
	"collegepay/internal/notify"
	"collegepay/internal/queue"
	"collegepay/internal/store"
)

type storePayments struct{ *store.Memory }

func (s storePayments) Get(ctx context.Context, id int64) (model.Payment, error) {
	return s.GetPayment(ctx, id)
}

func (s storePayments) AttachProofURL(ctx context.Context, id int64, url string) error {
	return s.UpdatePaymentProof(ctx, id, url)
}

type fakeUploader struct {
	calls int
	err   error
}

func (u *fakeUploader) UploadProof(_ context.Context, paymentID int64, _ string) (*cloudinary.UploadResult, error) {
	u.calls++
	if u.err != nil {
		return nil, u.err
	}
	return &cloudinary.UploadResult{SecureURL: "https://res.cloudinary.com/demo/payment.png"}, nil
}

type recordingNotifier struct {
	userID int64
	got    []notify.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, msg notify.Notification) error {
	n.userID = userID
	n.got = append(n.got, msg)
	return nil
}

func message(t *testing.T, msgType string, payload any) queue.Message {
	t.Helper()
	msg, err := queue.NewMessage(msgType, payload)
	require.NoError(t, err)
	return msg
}

func TestHandle_ProofUpload(t *testing.T) {
	ctx := context.Background()
	records := store.NewMemory()
	inline, _ := records.CreatePayment(ctx, model.Payment{UserID: 1, EventID: 1, Proof: "data:image/png;base64,AAAA"})
	hosted, _ := records.CreatePayment(ctx, model.Payment{UserID: 1, EventID: 1, Proof: "https://already/there.png"})

	uploader := &fakeUploader{}
	p := NewProcessor(storePayments{records}, uploader, nil)

	require.NoError(t, p.Handle(ctx, message(t, queue.TypeProofUpload, queue.ProofUpload{PaymentID: inline.ID})))
	got, _ := records.GetPayment(ctx, inline.ID)
	assert.Equal(t, "https://res.cloudinary.com/demo/payment.png", got.Proof)

	require.NoError(t, p.Handle(ctx, message(t, queue.TypeProofUpload, queue.ProofUpload{PaymentID: hosted.ID})))
	assert.Equal(t, 1, uploader.calls)

	err := p.Handle(ctx, message(t, queue.TypeProofUpload, queue.ProofUpload{PaymentID: 404}))
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestHandle_ProofUploadFailureKeepsInlineProof(t *testing.T) {
	ctx := context.Background()
	records := store.NewMemory()
	pay, _ := records.CreatePayment(ctx, model.Payment{UserID: 1, EventID: 1, Proof: "data:image/png;base64,AAAA"})

	p := NewProcessor(storePayments{records}, &fakeUploader{err: errors.New("cloudinary: upload failed (500)")}, nil)
	assert.Error(t, p.Handle(ctx, message(t, queue.TypeProofUpload, queue.ProofUpload{PaymentID: pay.ID})))

	got, _ := records.GetPayment(ctx, pay.ID)
	assert.Equal(t, "data:image/png;base64,AAAA", got.Proof)
}

func TestHandle_ProofUploadWithoutStorage(t *testing.T) {
	p := NewProcessor(storePayments{store.NewMemory()}, nil, nil)
	assert.NoError(t, p.Handle(context.Background(), message(t, queue.TypeProofUpload, queue.ProofUpload{PaymentID: 1})))
}

func TestHandle_PaymentStatus(t *testing.T) {
	notifier := &recordingNotifier{}
	p := NewProcessor(storePayments{store.NewMemory()}, nil, notifier)

	msg := message(t, queue.TypePaymentStatus, queue.PaymentStatus{
		PaymentID: 9, UserID: 7, EventID: 3, EventName: "Tech Fest", From: model.StatusPending, To: model.StatusCompleted,
	})
	require.NoError(t, p.Handle(context.Background(), msg))

	assert.Equal(t, int64(7), notifier.userID)
	require.Len(t, notifier.got, 1)
	assert.Equal(t, model.StatusCompleted, notifier.got[0].Status)
	assert.Equal(t, "Tech Fest", notifier.got[0].EventName)
}

func TestHandle_MalformedAndUnknown(t *testing.T) {
	p := NewProcessor(storePayments{store.NewMemory()}, nil, nil)
	ctx := context.Background()

	assert.Error(t, p.Handle(ctx, queue.Message{Type: queue.TypePaymentStatus, Body: []byte("{")}))
	assert.NoError(t, p.Handle(ctx, queue.Message{Type: "checkin", Body: []byte("{}")}))
}

func TestRun_DrainsQueue(t *testing.T) {
	notifier := &recordingNotifier{}
	p := NewProcessor(storePayments{store.NewMemory()}, nil, notifier)
	q := queue.NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, q.Publish(ctx, message(t, queue.TypePaymentStatus, queue.PaymentStatus{PaymentID: 1, UserID: 2})))

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, q) }()

	assert.Eventually(t, func() bool { return len(notifier.got) == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
