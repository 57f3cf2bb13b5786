// Package notify defines the outbound notification port. Actual SMS/email
// delivery lives outside this system; implementations only hand messages to
// that external collaborator.
package notify

import (
	"context"
	"log/slog"
)

// Notifier dispatches one-time codes and password reset links.
type Notifier interface {
	SendOtp(ctx context.Context, phone, code, locale string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogNotifier writes notifications to the log. Used in development and as
// the worker-side stand-in until a gateway is wired.
type LogNotifier struct {
	Logger *slog.Logger
}

// SendOtp logs the dispatch. The code itself is not logged.
func (n LogNotifier) SendOtp(ctx context.Context, phone, code, locale string) error {
	n.logger().InfoContext(ctx, "dispatch otp",
		slog.String("phone", phone), slog.String("locale", locale))
	return nil
}

// SendPasswordReset logs the dispatch.
func (n LogNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	n.logger().InfoContext(ctx, "dispatch password reset", slog.String("email", email))
	return nil
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}
