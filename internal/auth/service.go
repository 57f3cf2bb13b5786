// Package auth implements the authentication flows: password login, the OTP
// path, and password reset. Both login paths converge on token issuance.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/atlas-eam/atlas-eam/internal/identity"
	"github.com/atlas-eam/atlas-eam/internal/shared"
)

const resetTokenTTL = time.Hour

// Store is the slice of the identity store the auth flows read and write.
type Store interface {
	FindUserByUsername(ctx context.Context, username string) (*identity.User, error)
	FindUserByEmail(ctx context.Context, email string) (*identity.User, error)
	DirectPermissionsForUser(ctx context.Context, userID int64) ([]identity.Permission, error)
	UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error
	CreatePasswordResetToken(ctx context.Context, token identity.PasswordResetToken) error
	GetPasswordResetToken(ctx context.Context, token string) (*identity.PasswordResetToken, error)
	DeletePasswordResetToken(ctx context.Context, token string) error
	DeletePasswordResetTokensForUser(ctx context.Context, userID int64) error
}

// OtpManager is the OTP lifecycle consumed by the phone login path.
type OtpManager interface {
	Generate(ctx context.Context, phone string) (string, error)
	Resend(ctx context.Context, phone string) (string, bool, error)
	Verify(ctx context.Context, phone, code string) (string, error)
	OlderThanResendWindow(ctx context.Context, phone string) (bool, error)
}

// TokenIssuer produces signed bearer tokens.
type TokenIssuer interface {
	Issue(subject string, roleCodes, permissionCodes []string) (string, error)
}

// RoleDirectory lists the role codes embedded in issued tokens.
type RoleDirectory interface {
	RoleCodesForUser(ctx context.Context, userID int64) ([]string, error)
}

// Dispatcher hands codes and reset links to the external notifier.
type Dispatcher interface {
	DispatchOtp(ctx context.Context, phone, code, locale string) error
	DispatchPasswordReset(ctx context.Context, email, token string) error
}

// Service wraps authentication business rules.
type Service struct {
	store      Store
	otp        OtpManager
	tokens     TokenIssuer
	roles      RoleDirectory
	dispatcher Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, otp OtpManager, tokens TokenIssuer, roles RoleDirectory, dispatcher Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		otp:        otp,
		tokens:     tokens,
		roles:      roles,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Login validates username/password credentials and issues a token. Unknown
// user, disabled user and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			user, err = s.store.FindUserByEmail(ctx, username)
		}
		if err != nil {
			return "", shared.ErrInvalidCredentials
		}
	}
	if !user.Enabled {
		return "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", shared.ErrInvalidCredentials
	}
	return s.issueFor(ctx, user)
}

// RequestOtp generates a one-time code for the phone number and hands it to
// the notifier. A live code inside the resend window throttles the request.
// The code never appears in the response path.
func (s *Service) RequestOtp(ctx context.Context, phone string) error {
	older, err := s.otp.OlderThanResendWindow(ctx, phone)
	if err != nil {
		return err
	}
	if !older {
		return shared.ErrOtpThrottled
	}
	code, err := s.otp.Generate(ctx, phone)
	if err != nil {
		return err
	}
	return s.dispatch(ctx, phone, code)
}

// ResendOtp regenerates and dispatches a code. A live code still inside the
// resend window throttles the request instead of regenerating.
func (s *Service) ResendOtp(ctx context.Context, phone string) error {
	code, regenerated, err := s.otp.Resend(ctx, phone)
	if err != nil {
		return err
	}
	if !regenerated {
		return shared.ErrOtpThrottled
	}
	return s.dispatch(ctx, phone, code)
}

// VerifyOtp consumes the code and issues a token for the owning user. A
// disabled account is rejected the same way the password path rejects it.
func (s *Service) VerifyOtp(ctx context.Context, phone, code string) (string, error) {
	subject, err := s.otp.Verify(ctx, phone, code)
	if err != nil {
		return "", err
	}
	user, err := s.store.FindUserByUsername(ctx, subject)
	if err != nil {
		return "", err
	}
	if !user.Enabled {
		return "", shared.ErrInvalidCredentials
	}
	return s.issueFor(ctx, user)
}

// InitiatePasswordReset creates a single-use reset token and hands it to the
// notifier. An unknown email is silently ignored so callers cannot probe for
// accounts.
func (s *Service) InitiatePasswordReset(ctx context.Context, email string) error {
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.store.DeletePasswordResetTokensForUser(ctx, user.ID); err != nil {
		return err
	}
	reset := identity.PasswordResetToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(resetTokenTTL),
	}
	if err := s.store.CreatePasswordResetToken(ctx, reset); err != nil {
		return err
	}
	if s.dispatcher == nil {
		return nil
	}
	return s.dispatcher.DispatchPasswordReset(ctx, user.Email, reset.Token)
}

// ResetPassword consumes a reset token and replaces the user's password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	reset, err := s.store.GetPasswordResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.ErrResetTokenInvalid
		}
		return err
	}
	if s.now().After(reset.ExpiresAt) {
		_ = s.store.DeletePasswordResetToken(ctx, token)
		return shared.ErrResetTokenInvalid
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	if err := s.store.UpdateUserPassword(ctx, reset.UserID, string(hash)); err != nil {
		return err
	}
	return s.store.DeletePasswordResetToken(ctx, token)
}

func (s *Service) issueFor(ctx context.Context, user *identity.User) (string, error) {
	roleCodes, err := s.roles.RoleCodesForUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	direct, err := s.store.DirectPermissionsForUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	permCodes := make([]string, 0, len(direct))
	for _, p := range direct {
		permCodes = append(permCodes, p.Code)
	}
	return s.tokens.Issue(user.Username, roleCodes, permCodes)
}

func (s *Service) dispatch(ctx context.Context, phone, code string) error {
	if s.dispatcher == nil {
		return nil
	}
	locale := shared.LocaleFromContext(ctx).String()
	if err := s.dispatcher.DispatchOtp(ctx, phone, code, locale); err != nil {
		s.logger.Error("dispatch otp", slog.Any("error", err))
		return err
	}
	return nil
}
