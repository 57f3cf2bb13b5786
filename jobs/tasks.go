// Package jobs carries the asynq task definitions and the worker that
// processes them.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/atlas-eam/atlas-eam/internal/notify"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeOtpDispatch hands a generated one-time code to the notifier.
	TaskTypeOtpDispatch = "otp:dispatch"
	// TaskTypePasswordReset hands a password reset link to the notifier.
	TaskTypePasswordReset = "mail:password-reset"
)

// OtpDispatchPayload describes an OTP awaiting dispatch.
type OtpDispatchPayload struct {
	Phone  string `json:"phone"`
	Code   string `json:"code"`
	Locale string `json:"locale"`
}

// PasswordResetPayload describes a password reset mail awaiting dispatch.
type PasswordResetPayload struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// NewOtpDispatchTask constructs an Asynq task.
func NewOtpDispatchTask(payload OtpDispatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeOtpDispatch, data), nil
}

// NewPasswordResetTask constructs an Asynq task.
func NewPasswordResetTask(payload PasswordResetPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePasswordReset, data), nil
}

// HandleOtpDispatchTask processes TaskTypeOtpDispatch tasks.
func HandleOtpDispatchTask(notifier notify.Notifier) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload OtpDispatchPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		return notifier.SendOtp(ctx, payload.Phone, payload.Code, payload.Locale)
	}
}

// HandlePasswordResetTask processes TaskTypePasswordReset tasks.
func HandlePasswordResetTask(notifier notify.Notifier) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PasswordResetPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		return notifier.SendPasswordReset(ctx, payload.Email, payload.Token)
	}
}
