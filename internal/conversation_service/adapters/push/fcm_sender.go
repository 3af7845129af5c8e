package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
)

// messageSender is the part of *messaging.Client used here.
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender delivers push notifications through Firebase Cloud Messaging.
type FCMSender struct {
	client messageSender
	logger *slog.Logger
}

// NewFCMSender initializes a Firebase app from a service account file.
func NewFCMSender(ctx context.Context, credentialsFile, projectID string, logger *slog.Logger) (*FCMSender, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase messaging client: %w", err)
	}
	return newFCMSender(client, logger), nil
}

func newFCMSender(client messageSender, logger *slog.Logger) *FCMSender {
	return &FCMSender{client: client, logger: logger.With("component", "fcm_sender")}
}

// Send delivers n to its device token.
func (s *FCMSender) Send(ctx context.Context, n domain.PushNotification) error {
	if n.Token == "" {
		return errors.New("push notification without device token")
	}
	msg := &messaging.Message{
		Token: n.Token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
	}
	id, err := s.client.Send(ctx, msg)
	if err != nil {
		if messaging.IsUnregistered(err) {
			s.logger.WarnContext(ctx, "Device token is no longer registered", "error", err)
		}
		return fmt.Errorf("fcm send: %w", err)
	}
	s.logger.DebugContext(ctx, "FCM message sent", "fcm_message_id", id)
	return nil
}
