// Package notify delivers one-time codes to document submitters out of band.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Contact is where a code is delivered.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CodeNotification carries everything a delivery worker needs to render an email or SMS.
type CodeNotification struct {
	DocumentID    string    `json:"document_id"`
	Contact       Contact   `json:"contact"`
	Code          string    `json:"code"`
	DocumentLabel string    `json:"document_label"`
	CenterName    string    `json:"center_name"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Notifier sends a code notification. Implementations return an error when the
// message was not accepted by the channel.
type Notifier interface {
	Send(ctx context.Context, n CodeNotification) error
}

// LogNotifier writes notifications to the logger. It is used when no NSQ daemon is
// configured, so local runs can read codes from the log.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Send(_ context.Context, n CodeNotification) error {
	l.log.Info("otp_notification",
		zap.String("document_id", n.DocumentID),
		zap.String("email", n.Contact.Email),
		zap.String("phone", n.Contact.Phone),
		zap.String("code", n.Code),
		zap.String("document_label", n.DocumentLabel),
		zap.String("center_name", n.CenterName),
		zap.Time("expires_at", n.ExpiresAt))
	return nil
}
