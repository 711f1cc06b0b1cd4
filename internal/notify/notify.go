// Package notify tells students when an administrator decides on a payment.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go"

	"collegepay/internal/config"
	"collegepay/internal/model"
)

// Notification is the message a student receives on their channel.
type Notification struct {
	Type      string       `json:"type"`
	PaymentID int64        `json:"payment_id"`
	EventID   int64        `json:"event_id"`
	EventName string       `json:"event_name"`
	Status    model.Status `json:"status"`
	Previous  model.Status `json:"previous"`
}

// Notifier delivers notifications to one user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, n Notification) error
}

// ChannelFor is the realtime channel a student's client subscribes to.
func ChannelFor(userID int64) string {
	return fmt.Sprintf("user-%d", userID)
}

// PubNub publishes notifications on per-user channels.
type PubNub struct {
	publish func(channel string, message any) error
}

// NewPubNub builds a client from the PubNub keys in cfg.
func NewPubNub(cfg config.App) *PubNub {
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)
	return &PubNub{publish: func(channel string, message any) error {
		_, _, err := pn.Publish().
			Channel(channel).
			Message(message).
			Execute()
		return err
	}}
}

func (p *PubNub) Notify(_ context.Context, userID int64, n Notification) error {
	return p.publish(ChannelFor(userID), n)
}

// Log writes notifications to the process log when no realtime service is configured.
type Log struct{}

func (Log) Notify(_ context.Context, userID int64, n Notification) error {
	slog.Info("payment notification", "channel", ChannelFor(userID), "payment_id", n.PaymentID, "status", n.Status)
	return nil
}
