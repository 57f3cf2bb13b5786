package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-eam/atlas-eam/internal/shared"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewServiceRejectsShortSecret(t *testing.T) {
	_, err := NewService("too-short", 24*time.Hour)
	assert.Error(t, err)
}

func TestIssueValidateRoundTrip(t *testing.T) {
	svc, err := NewService(testSecret, 24*time.Hour)
	require.NoError(t, err)

	issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }

	raw, err := svc.Issue("jane.doe", []string{"ADMIN"}, []string{"USER_CREATE", "ROLE_MANAGE"})
	require.NoError(t, err)

	claims, err := svc.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe", claims.Subject)
	assert.Equal(t, []string{"ADMIN"}, claims.Roles)
	assert.Equal(t, []string{"USER_CREATE", "ROLE_MANAGE"}, claims.Permissions)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, claims.IssuedAt.Time.Equal(issuedAt))
	assert.True(t, claims.ExpiresAt.Time.Equal(issuedAt.Add(24*time.Hour)))
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	svc, err := NewService(testSecret, 24*time.Hour)
	require.NoError(t, err)

	raw, err := svc.Issue("jane.doe", nil, nil)
	require.NoError(t, err)

	tampered := []byte(raw)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	_, err = svc.Validate(string(tampered))
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer, err := NewService(testSecret, 24*time.Hour)
	require.NoError(t, err)
	verifier, err := NewService("ffffffffffffffffffffffffffffffff", 24*time.Hour)
	require.NoError(t, err)

	raw, err := issuer.Issue("jane.doe", nil, nil)
	require.NoError(t, err)

	_, err = verifier.Validate(raw)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc, err := NewService(testSecret, time.Hour)
	require.NoError(t, err)

	issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }

	raw, err := svc.Issue("jane.doe", nil, nil)
	require.NoError(t, err)

	svc.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }

	_, err = svc.Validate(raw)
	assert.ErrorIs(t, err, shared.ErrTokenExpired)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc, err := NewService(testSecret, time.Hour)
	require.NoError(t, err)

	_, err = svc.Validate("not.a.token")
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}
