// Package report joins payments with their users and events and derives the
// admin dashboard figures from the joined set. Everything here is pure.
package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"collegepay/internal/model"
)

// Labels used when a payment references a user or event that no longer exists.
const (
	UnknownUser  = "Unknown User"
	UnknownPhone = "Unknown"
	UnknownEvent = "Unknown Event"
)

// Join pairs every payment with its owner's name and phone and its event name.
// Output order follows payments.
func Join(users []model.User, events []model.Event, payments []model.Payment) []model.PaymentView {
	userByID := make(map[int64]model.User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}
	eventByID := make(map[int64]model.Event, len(events))
	for _, e := range events {
		eventByID[e.ID] = e
	}

	views := make([]model.PaymentView, 0, len(payments))
	for _, p := range payments {
		view := model.PaymentView{
			Payment:     p,
			UserName:    UnknownUser,
			PhoneNumber: UnknownPhone,
			EventName:   UnknownEvent,
		}
		if u, ok := userByID[p.UserID]; ok {
			view.UserName = u.Name
			view.PhoneNumber = u.PhoneNumber
		}
		if e, ok := eventByID[p.EventID]; ok {
			view.EventName = e.Name
		}
		views = append(views, view)
	}
	return views
}

// Summarize computes the dashboard counters.
func Summarize(users []model.User, payments []model.Payment) model.Stats {
	var stats model.Stats
	for _, u := range users {
		if u.Role == model.RoleStudent {
			stats.TotalStudents++
		}
	}
	stats.TotalPayments = len(payments)
	for _, p := range payments {
		switch p.Status {
		case model.StatusCompleted:
			stats.CompletedPayments++
		case model.StatusPending:
			stats.PendingPayments++
		}
	}
	return stats
}

// Filter narrows the admin table.
type Filter struct {
	// Status is "", "all" or one of the payment statuses.
	Status string
	// Search matches user and event names case-insensitively and phone numbers as a substring.
	Search string
}

// Apply returns the views matching f.
func (f Filter) Apply(views []model.PaymentView) []model.PaymentView {
	status := strings.TrimSpace(f.Status)
	term := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]model.PaymentView, 0, len(views))
	for _, v := range views {
		if status != "" && status != "all" && string(v.Status) != status {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(v.UserName), term) &&
			!strings.Contains(v.PhoneNumber, strings.TrimSpace(f.Search)) &&
			!strings.Contains(strings.ToLower(v.EventName), term) {
			continue
		}
		out = append(out, v)
	}
	return out
}

var csvHeader = []string{"ID", "Student Name", "Phone", "Event", "Amount", "Date", "Status"}

// WriteCSV writes views as the payments report.
func WriteCSV(w io.Writer, views []model.PaymentView) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, v := range views {
		record := []string{
			strconv.FormatInt(v.ID, 10),
			v.UserName,
			v.PhoneNumber,
			v.EventName,
			v.Amount.StringFixed(2),
			v.CreatedAt.Format("2006-01-02"),
			string(v.Status),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
