package authapi

import (
	"context"
	"time"
)

// PasswordResetMessage is the canonical payload for reset delivery.
type PasswordResetMessage struct {
	Email      string
	Username   string
	ResetToken string
	ExpiresAt  time.Time
}

// EmailSender delivers password-reset emails.
type EmailSender interface {
	SendPasswordReset(ctx context.Context, msg PasswordResetMessage) error
}

// NoopEmailSender is the default sender: reset requests still answer 202,
// nothing is delivered. Used in development and tests.
type NoopEmailSender struct{}

func (NoopEmailSender) SendPasswordReset(_ context.Context, _ PasswordResetMessage) error {
	return nil
}
