package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collegepay/internal/model"
)

func fixtures() ([]model.User, []model.Event, []model.Payment) {
	users := []model.User{
		{ID: 1, Name: "Asha", PhoneNumber: "9999900000", Role: model.RoleStudent},
		{ID: 2, Name: "Ravi Kumar", PhoneNumber: "8888800000", Role: model.RoleStudent},
		{ID: 3, Name: "Dean", PhoneNumber: "1112223333", Role: model.RoleAdmin},
	}
	events := []model.Event{
		{ID: 10, Name: "Tech Fest", Fee: decimal.NewFromInt(500)},
		{ID: 11, Name: "Cultural Night", Fee: decimal.NewFromInt(200)},
	}
	at := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	payments := []model.Payment{
		{ID: 100, UserID: 1, EventID: 10, Amount: decimal.NewFromInt(500), Status: model.StatusPending, CreatedAt: at},
		{ID: 101, UserID: 2, EventID: 11, Amount: decimal.NewFromInt(200), Status: model.StatusCompleted, CreatedAt: at},
		{ID: 102, UserID: 2, EventID: 10, Amount: decimal.NewFromInt(500), Status: model.StatusRejected, CreatedAt: at},
		{ID: 103, UserID: 42, EventID: 99, Amount: decimal.RequireFromString("150.5"), Status: model.StatusPending, CreatedAt: at},
	}
	return users, events, payments
}

func TestJoin_SubstitutesLabelsForDanglingReferences(t *testing.T) {
	users, events, payments := fixtures()
	views := Join(users, events, payments)
	require.Len(t, views, 4)

	assert.Equal(t, "Asha", views[0].UserName)
	assert.Equal(t, "9999900000", views[0].PhoneNumber)
	assert.Equal(t, "Tech Fest", views[0].EventName)

	assert.Equal(t, UnknownUser, views[3].UserName)
	assert.Equal(t, UnknownPhone, views[3].PhoneNumber)
	assert.Equal(t, UnknownEvent, views[3].EventName)
	assert.Equal(t, int64(103), views[3].ID)
}

func TestJoin_EmptyInputs(t *testing.T) {
	assert.Empty(t, Join(nil, nil, nil))

	_, _, payments := fixtures()
	views := Join(nil, nil, payments)
	for _, v := range views {
		assert.Equal(t, UnknownUser, v.UserName)
		assert.Equal(t, UnknownEvent, v.EventName)
	}
}

func TestSummarize(t *testing.T) {
	users, _, payments := fixtures()
	stats := Summarize(users, payments)

	assert.Equal(t, model.Stats{TotalStudents: 2, TotalPayments: 4, CompletedPayments: 1, PendingPayments: 2}, stats)
	assert.LessOrEqual(t, stats.CompletedPayments+stats.PendingPayments, stats.TotalPayments)
}

func TestSummarize_EqualityWithoutRejections(t *testing.T) {
	users, _, payments := fixtures()
	var kept []model.Payment
	for _, p := range payments {
		if p.Status != model.StatusRejected {
			kept = append(kept, p)
		}
	}
	stats := Summarize(users, kept)
	assert.Equal(t, stats.TotalPayments, stats.CompletedPayments+stats.PendingPayments)
}

func TestFilter_Apply(t *testing.T) {
	users, events, payments := fixtures()
	views := Join(users, events, payments)

	ids := func(vs []model.PaymentView) []int64 {
		var out []int64
		for _, v := range vs {
			out = append(out, v.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter Filter
		want   []int64
	}{
		{"everything", Filter{}, []int64{100, 101, 102, 103}},
		{"all keyword", Filter{Status: "all"}, []int64{100, 101, 102, 103}},
		{"pending", Filter{Status: "pending"}, []int64{100, 103}},
		{"name is case insensitive", Filter{Search: "RAVI"}, []int64{101, 102}},
		{"event name", Filter{Search: "cultural"}, []int64{101}},
		{"phone substring", Filter{Search: "88888"}, []int64{101, 102}},
		{"status and search", Filter{Status: "rejected", Search: "ravi"}, []int64{102}},
		{"sentinel labels are searchable", Filter{Search: "unknown"}, []int64{103}},
		{"no match", Filter{Search: "zzz"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.filter.Apply(views)))
		})
	}
}

func TestWriteCSV(t *testing.T) {
	users, events, payments := fixtures()
	views := Join(users, events, payments)[:2]
	views[0].UserName = "Asha, B."

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, views))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID,Student Name,Phone,Event,Amount,Date,Status", lines[0])
	assert.Equal(t, `100,"Asha, B.",9999900000,Tech Fest,500.00,2026-02-01,pending`, lines[1])
	assert.Equal(t, "101,Ravi Kumar,8888800000,Cultural Night,200.00,2026-02-01,completed", lines[2])
}
