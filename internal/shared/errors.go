package shared

import "errors"

var (
	// ErrNotFound indicates a referenced user, role, permission, feature or
	// location does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a unique code or identifier is already taken.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInvalidCredentials indicates login failure. Unknown user and wrong
	// password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOtp collapses every one-time-code failure (missing, expired,
	// mismatched) into a single external signal.
	ErrInvalidOtp = errors.New("invalid otp")
	// ErrOtpThrottled indicates a code was requested again inside the resend window.
	ErrOtpThrottled = errors.New("otp requested too recently")
	// ErrResetTokenInvalid indicates a password reset token is unknown, used or expired.
	ErrResetTokenInvalid = errors.New("invalid or expired password reset token")
	// ErrInvalidToken indicates a bearer token failed signature or structural checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates a bearer token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrForbidden indicates the principal lacks a required capability.
	ErrForbidden = errors.New("forbidden")
)
