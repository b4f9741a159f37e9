package notify

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"
)

// Notification is a push message addressed to one device.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

type Notifier interface {
	Notify(ctx context.Context, token string, n Notification) error
}

// Nop drops every notification. It is used when push is not configured.
type Nop struct{}

func (Nop) Notify(context.Context, string, Notification) error { return nil }

// FCM delivers notifications through Firebase Cloud Messaging.
type FCM struct {
	client *messaging.Client
	logger *slog.Logger
}

func NewFCM(ctx context.Context, credentialsFile string, logger *slog.Logger) (*FCM, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	return &FCM{client: client, logger: logger}, nil
}

func (f *FCM) Notify(ctx context.Context, token string, n Notification) error {
	if token == "" {
		return nil
	}
	id, err := f.client.Send(ctx, buildMessage(token, n))
	if err != nil {
		f.logger.Error("push failed", "op", "Notify", "err", err)
		return err
	}
	f.logger.Debug("push sent", "op", "Notify", "id", id)
	return nil
}

func buildMessage(token string, n Notification) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "high_priority_channel",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "10",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: n.Title,
						Body:  n.Body,
					},
					Sound: "default",
				},
			},
		},
	}
}
