package authapi

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender delivers password-reset emails through SendGrid.
type SendGridSender struct {
	apiKey       string
	fromName     string
	fromAddress  string
	resetURLBase string
}

// NewSendGridSenderFromEnv builds a SendGridSender when LOFT_SENDGRID_API_KEY
// is set, otherwise (nil, false) so callers fall back to NoopEmailSender.
//
// Env surface:
//   - LOFT_SENDGRID_API_KEY
//   - LOFT_SENDGRID_FROM_NAME    (default "loft")
//   - LOFT_SENDGRID_FROM_ADDRESS (default "no-reply@loft.local")
func NewSendGridSenderFromEnv(resetURLBase string) (*SendGridSender, bool) {
	key := strings.TrimSpace(os.Getenv("LOFT_SENDGRID_API_KEY"))
	if key == "" {
		return nil, false
	}

	return &SendGridSender{
		apiKey:       key,
		fromName:     envString("LOFT_SENDGRID_FROM_NAME", "loft"),
		fromAddress:  envString("LOFT_SENDGRID_FROM_ADDRESS", "no-reply@loft.local"),
		resetURLBase: strings.TrimSpace(resetURLBase),
	}, true
}

// SendPasswordReset sends the reset email. The token is short-lived, so the
// message states the expiry explicitly.
func (s *SendGridSender) SendPasswordReset(ctx context.Context, msg PasswordResetMessage) error {
	from := mail.NewEmail(s.fromName, s.fromAddress)
	to := mail.NewEmail(msg.Username, msg.Email)

	subject := "Reset your password"

	var link string
	if s.resetURLBase != "" {
		link = s.resetURLBase + "?token=" + url.QueryEscape(msg.ResetToken)
	}

	plain := fmt.Sprintf(
		"Hi %s,\n\nA password reset was requested for your account. The reset token below is valid until %s (UTC).\n\n%s\n\nIf you did not request this, you can ignore this email.\n",
		msg.Username,
		msg.ExpiresAt.UTC().Format("15:04 on Jan 2, 2006"),
		s.resetBody(link, msg.ResetToken),
	)
	html := fmt.Sprintf(
		"<p>Hi %s,</p><p>A password reset was requested for your account. The reset link below is valid until %s (UTC).</p><p>%s</p><p>If you did not request this, you can ignore this email.</p>",
		msg.Username,
		msg.ExpiresAt.UTC().Format("15:04 on Jan 2, 2006"),
		s.resetBodyHTML(link, msg.ResetToken),
	)

	m := mail.NewSingleEmail(from, subject, to, plain, html)
	client := sendgrid.NewSendClient(s.apiKey)

	resp, err := client.SendWithContext(ctx, m)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: status %d", resp.StatusCode)
	}
	return nil
}

func (s *SendGridSender) resetBody(link, token string) string {
	if link != "" {
		return link
	}
	return "Reset token: " + token
}

func (s *SendGridSender) resetBodyHTML(link, token string) string {
	if link != "" {
		return fmt.Sprintf(`<a href="%s">Reset password</a>`, link)
	}
	return "Reset token: <code>" + token + "</code>"
}

var _ EmailSender = (*SendGridSender)(nil)
