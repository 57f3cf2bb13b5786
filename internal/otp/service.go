package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/atlas-eam/atlas-eam/internal/shared"
)

// Defaults preserved from the upstream lifecycle.
const (
	DefaultTTL          = 5 * time.Minute
	DefaultResendWindow = 30 * time.Second
)

// Directory resolves a phone number to the owning user's username. Generation
// fails for phone numbers no principal owns.
type Directory interface {
	SubjectByPhone(ctx context.Context, phone string) (string, error)
}

// Service owns the OTP state machine per phone number:
// absent -> issued -> (verified | expired | superseded).
type Service struct {
	directory    Directory
	store        Store
	logger       *slog.Logger
	ttl          time.Duration
	resendWindow time.Duration
	now          func() time.Time
}

// NewService constructs a Service.
func NewService(directory Directory, store Store, logger *slog.Logger, ttl, resendWindow time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if resendWindow <= 0 {
		resendWindow = DefaultResendWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		directory:    directory,
		store:        store,
		logger:       logger,
		ttl:          ttl,
		resendWindow: resendWindow,
		now:          time.Now,
	}
}

// Generate creates a fresh 6-digit code for the phone number, replacing any
// prior record, and returns it to the caller. Dispatch to the user is the
// caller's concern. Fails with shared.ErrNotFound when no user owns the phone.
func (s *Service) Generate(ctx context.Context, phone string) (string, error) {
	if _, err := s.directory.SubjectByPhone(ctx, phone); err != nil {
		return "", err
	}
	code, err := sixDigitCode()
	if err != nil {
		return "", err
	}
	rec := Record{Code: code, ExpiresAt: s.now().Add(s.ttl)}
	if err := s.store.Put(ctx, phone, rec); err != nil {
		return "", err
	}
	s.logger.Info("otp generated", slog.String("phone", phone))
	return code, nil
}

// Resend regenerates the code only when the live record is older than the
// resend window (or absent/expired). It reports whether a new code was issued.
func (s *Service) Resend(ctx context.Context, phone string) (string, bool, error) {
	older, err := s.OlderThanResendWindow(ctx, phone)
	if err != nil {
		return "", false, err
	}
	if !older {
		s.logger.Info("otp still fresh, not regenerating", slog.String("phone", phone))
		return "", false, nil
	}
	code, err := s.Generate(ctx, phone)
	if err != nil {
		return "", false, err
	}
	return code, true, nil
}

// Exists reports whether a live, unexpired record exists for the phone
// number. Expired records are evicted as a side effect.
func (s *Service) Exists(ctx context.Context, phone string) (bool, error) {
	rec, ok, err := s.store.Get(ctx, phone)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if s.now().After(rec.ExpiresAt) {
		_ = s.store.Delete(ctx, phone)
		return false, nil
	}
	return true, nil
}

// OlderThanResendWindow is the regenerate throttle gate: true when no record
// exists, the record is expired, or it was created more than the resend
// window ago.
func (s *Service) OlderThanResendWindow(ctx context.Context, phone string) (bool, error) {
	rec, ok, err := s.store.Get(ctx, phone)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	now := s.now()
	if now.After(rec.ExpiresAt) {
		_ = s.store.Delete(ctx, phone)
		return true, nil
	}
	createdAt := rec.ExpiresAt.Add(-s.ttl)
	return createdAt.Before(now.Add(-s.resendWindow)), nil
}

// Verify consumes the code for the phone number. It fails closed with
// shared.ErrInvalidOtp on a missing record, an expired record (evicting it)
// or a mismatch. On success the record is removed (single use) and the owning
// user's subject is returned for token issuance. The delete re-checks the
// code under the store's per-key lock so a concurrently superseded code never
// verifies.
func (s *Service) Verify(ctx context.Context, phone, code string) (string, error) {
	rec, ok, err := s.store.Get(ctx, phone)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", shared.ErrInvalidOtp
	}
	if s.now().After(rec.ExpiresAt) {
		_ = s.store.Delete(ctx, phone)
		return "", shared.ErrInvalidOtp
	}
	if rec.Code != code {
		return "", shared.ErrInvalidOtp
	}
	deleted, err := s.store.DeleteIfCode(ctx, phone, code)
	if err != nil {
		return "", err
	}
	if !deleted {
		// Superseded by a concurrent Generate between the read and the delete.
		return "", shared.ErrInvalidOtp
	}
	subject, err := s.directory.SubjectByPhone(ctx, phone)
	if err != nil {
		return "", err
	}
	s.logger.Info("otp verified", slog.String("phone", phone))
	return subject, nil
}

func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("otp: random code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
