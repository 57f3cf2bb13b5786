package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
)

// Client enqueues dispatch tasks from the request path so slow gateways never
// block a login flow.
type Client struct {
	client *asynq.Client
}

// NewClient constructs a Client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// DispatchOtp enqueues an OTP for delivery.
func (c *Client) DispatchOtp(ctx context.Context, phone, code, locale string) error {
	task, err := NewOtpDispatchTask(OtpDispatchPayload{Phone: phone, Code: code, Locale: locale})
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault)); err != nil {
		return fmt.Errorf("jobs: enqueue otp dispatch: %w", err)
	}
	return nil
}

// DispatchPasswordReset enqueues a password reset mail for delivery.
func (c *Client) DispatchPasswordReset(ctx context.Context, email, token string) error {
	task, err := NewPasswordResetTask(PasswordResetPayload{Email: email, Token: token})
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault)); err != nil {
		return fmt.Errorf("jobs: enqueue password reset: %w", err)
	}
	return nil
}
