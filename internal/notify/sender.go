package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// FCMSender sends push notifications via Firebase Cloud Messaging.
// Nil-safe: when not configured, all methods are no-ops.
type FCMSender struct {
	credentialsFile string
	logger          *slog.Logger
	// TODO: Add firebase.google.com/go/v4/messaging.Client when the FCM
	// dependency is added. For now this is a structured placeholder that
	// logs send attempts and returns a synthetic delivery id.
}

// NewFCMSender creates an FCM sender from a service account credentials
// file. Returns nil if credentialsFile is empty (push delivery disabled).
func NewFCMSender(credentialsFile string, logger *slog.Logger) *FCMSender {
	if credentialsFile == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FCMSender{
		credentialsFile: credentialsFile,
		logger:          logger,
	}
}

// Send delivers one notification to a device token and returns a delivery
// id. When the FCM client is integrated, this will call messaging.Send.
func (s *FCMSender) Send(ctx context.Context, token string, n Notification) (string, error) {
	if s == nil {
		return "", nil // no-op when not configured
	}
	if token == "" {
		return "", fmt.Errorf("empty device token")
	}

	// TODO: Replace with the actual FCM client call:
	//   msg := &messaging.Message{
	//       Token:        token,
	//       Notification: &messaging.Notification{Title: n.Title, Body: n.Body},
	//       Data:         n.Data,
	//   }
	//   return s.client.Send(ctx, msg)

	deliveryID := uuid.NewString()
	s.logger.Info("FCM send (pending integration)",
		"delivery_id", deliveryID, "title", n.Title, "type", n.Data["type"])
	return deliveryID, nil
}
