package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/language"

	"github.com/atlas-eam/atlas-eam/internal/identity"
	"github.com/atlas-eam/atlas-eam/internal/shared"
	"github.com/atlas-eam/atlas-eam/internal/token"
)

type mockStore struct {
	usersByUsername map[string]*identity.User
	usersByEmail    map[string]*identity.User
	userPermissions map[int64][]identity.Permission
	resetTokens     map[string]identity.PasswordResetToken
	passwordUpdates map[int64]string
}

func newMockStore() *mockStore {
	return &mockStore{
		usersByUsername: map[string]*identity.User{},
		usersByEmail:    map[string]*identity.User{},
		userPermissions: map[int64][]identity.Permission{},
		resetTokens:     map[string]identity.PasswordResetToken{},
		passwordUpdates: map[int64]string{},
	}
}

func (m *mockStore) addUser(u *identity.User) {
	m.usersByUsername[u.Username] = u
	if u.Email != "" {
		m.usersByEmail[u.Email] = u
	}
}

func (m *mockStore) FindUserByUsername(_ context.Context, username string) (*identity.User, error) {
	u, ok := m.usersByUsername[username]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (m *mockStore) FindUserByEmail(_ context.Context, email string) (*identity.User, error) {
	u, ok := m.usersByEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (m *mockStore) DirectPermissionsForUser(_ context.Context, userID int64) ([]identity.Permission, error) {
	return m.userPermissions[userID], nil
}

func (m *mockStore) UpdateUserPassword(_ context.Context, userID int64, passwordHash string) error {
	m.passwordUpdates[userID] = passwordHash
	return nil
}

func (m *mockStore) CreatePasswordResetToken(_ context.Context, t identity.PasswordResetToken) error {
	m.resetTokens[t.Token] = t
	return nil
}

func (m *mockStore) GetPasswordResetToken(_ context.Context, tok string) (*identity.PasswordResetToken, error) {
	t, ok := m.resetTokens[tok]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &t, nil
}

func (m *mockStore) DeletePasswordResetToken(_ context.Context, tok string) error {
	delete(m.resetTokens, tok)
	return nil
}

func (m *mockStore) DeletePasswordResetTokensForUser(_ context.Context, userID int64) error {
	for tok, t := range m.resetTokens {
		if t.UserID == userID {
			delete(m.resetTokens, tok)
		}
	}
	return nil
}

type mockOtp struct {
	codes    map[string]string
	subjects map[string]string
}

func (m *mockOtp) Generate(_ context.Context, phone string) (string, error) {
	if _, ok := m.subjects[phone]; !ok {
		return "", shared.ErrNotFound
	}
	m.codes[phone] = "123456"
	return "123456", nil
}

func (m *mockOtp) Resend(ctx context.Context, phone string) (string, bool, error) {
	if _, live := m.codes[phone]; live {
		return "", false, nil
	}
	code, err := m.Generate(ctx, phone)
	return code, err == nil, err
}

func (m *mockOtp) OlderThanResendWindow(_ context.Context, phone string) (bool, error) {
	_, live := m.codes[phone]
	return !live, nil
}

func (m *mockOtp) Verify(_ context.Context, phone, code string) (string, error) {
	want, ok := m.codes[phone]
	if !ok || want != code {
		return "", shared.ErrInvalidOtp
	}
	delete(m.codes, phone)
	return m.subjects[phone], nil
}

type mockRoles struct {
	byUser map[int64][]string
}

func (m *mockRoles) RoleCodesForUser(_ context.Context, userID int64) ([]string, error) {
	return m.byUser[userID], nil
}

type recordingDispatcher struct {
	otpPhones   []string
	otpLocales  []string
	resetEmails []string
	resetTokens []string
}

func (d *recordingDispatcher) DispatchOtp(_ context.Context, phone, _ string, locale string) error {
	d.otpPhones = append(d.otpPhones, phone)
	d.otpLocales = append(d.otpLocales, locale)
	return nil
}

func (d *recordingDispatcher) DispatchPasswordReset(_ context.Context, email, token string) error {
	d.resetEmails = append(d.resetEmails, email)
	d.resetTokens = append(d.resetTokens, token)
	return nil
}

const testSecret = "0123456789abcdef0123456789abcdef"

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

type fixture struct {
	service    *Service
	store      *mockStore
	otp        *mockOtp
	tokens     *token.Service
	dispatcher *recordingDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMockStore()
	store.addUser(&identity.User{
		ID:           10,
		Username:     "jane.doe",
		Email:        "jane@example.com",
		PhoneNumber:  "+15551234567",
		PasswordHash: hashOf(t, "s3cret-pass"),
		Enabled:      true,
	})
	store.userPermissions[10] = []identity.Permission{{ID: 1, Code: "REPORT_EXPORT"}}

	tokens, err := token.NewService(testSecret, 24*time.Hour)
	require.NoError(t, err)

	otp := &mockOtp{
		codes:    map[string]string{},
		subjects: map[string]string{"+15551234567": "jane.doe"},
	}
	roles := &mockRoles{byUser: map[int64][]string{10: {"ADMIN"}}}
	dispatcher := &recordingDispatcher{}

	return &fixture{
		service:    NewService(store, otp, tokens, roles, dispatcher, nil),
		store:      store,
		otp:        otp,
		tokens:     tokens,
		dispatcher: dispatcher,
	}
}

func TestLoginIssuesToken(t *testing.T) {
	f := newFixture(t)

	raw, err := f.service.Login(context.Background(), "jane.doe", "s3cret-pass")
	require.NoError(t, err)

	claims, err := f.tokens.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe", claims.Subject)
	assert.Equal(t, []string{"ADMIN"}, claims.Roles)
	assert.Equal(t, []string{"REPORT_EXPORT"}, claims.Permissions)
}

func TestLoginFallsBackToEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Login(context.Background(), "jane@example.com", "s3cret-pass")
	assert.NoError(t, err)
}

func TestLoginFailuresIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, unknownErr := f.service.Login(ctx, "nobody", "s3cret-pass")
	_, wrongErr := f.service.Login(ctx, "jane.doe", "wrong-pass")

	assert.ErrorIs(t, unknownErr, shared.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, shared.ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestLoginRejectsDisabledUser(t *testing.T) {
	f := newFixture(t)
	f.store.addUser(&identity.User{
		ID:           11,
		Username:     "gone",
		PasswordHash: hashOf(t, "s3cret-pass"),
		Enabled:      false,
	})

	_, err := f.service.Login(context.Background(), "gone", "s3cret-pass")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestRequestOtpDispatchesWithLocale(t *testing.T) {
	f := newFixture(t)
	ctx := shared.ContextWithLocale(context.Background(), language.Indonesian)

	require.NoError(t, f.service.RequestOtp(ctx, "+15551234567"))

	require.Len(t, f.dispatcher.otpPhones, 1)
	assert.Equal(t, "+15551234567", f.dispatcher.otpPhones[0])
	assert.Equal(t, "id", f.dispatcher.otpLocales[0])
}

func TestRequestOtpUnknownPhone(t *testing.T) {
	f := newFixture(t)

	err := f.service.RequestOtp(context.Background(), "+15550000000")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, f.dispatcher.otpPhones)
}

func TestRequestOtpThrottledInsideWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.RequestOtp(ctx, "+15551234567"))

	err := f.service.RequestOtp(ctx, "+15551234567")
	assert.ErrorIs(t, err, shared.ErrOtpThrottled)
	assert.Len(t, f.dispatcher.otpPhones, 1, "throttled request must not dispatch")

	err = f.service.ResendOtp(ctx, "+15551234567")
	assert.ErrorIs(t, err, shared.ErrOtpThrottled)
	assert.Len(t, f.dispatcher.otpPhones, 1)
}

func TestVerifyOtpIssuesTokenForSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.RequestOtp(ctx, "+15551234567"))

	raw, err := f.service.VerifyOtp(ctx, "+15551234567", "123456")
	require.NoError(t, err)

	claims, err := f.tokens.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe", claims.Subject)

	_, err = f.service.VerifyOtp(ctx, "+15551234567", "123456")
	assert.ErrorIs(t, err, shared.ErrInvalidOtp)
}

func TestVerifyOtpRejectsDisabledUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.addUser(&identity.User{
		ID:           12,
		Username:     "locked.out",
		PhoneNumber:  "+15557654321",
		PasswordHash: hashOf(t, "s3cret-pass"),
		Enabled:      false,
	})
	f.otp.subjects["+15557654321"] = "locked.out"

	// Both login paths reject the disabled account the same way.
	_, err := f.service.Login(ctx, "locked.out", "s3cret-pass")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	require.NoError(t, f.service.RequestOtp(ctx, "+15557654321"))
	_, err = f.service.VerifyOtp(ctx, "+15557654321", "123456")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestInitiatePasswordResetUnknownEmailSilent(t *testing.T) {
	f := newFixture(t)

	err := f.service.InitiatePasswordReset(context.Background(), "ghost@example.com")
	assert.NoError(t, err)
	assert.Empty(t, f.dispatcher.resetEmails)
	assert.Empty(t, f.store.resetTokens)
}

func TestPasswordResetRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.InitiatePasswordReset(ctx, "jane@example.com"))
	require.Len(t, f.dispatcher.resetTokens, 1)
	tok := f.dispatcher.resetTokens[0]

	require.NoError(t, f.service.ResetPassword(ctx, tok, "brand-new-pass"))

	hash, ok := f.store.passwordUpdates[10]
	require.True(t, ok)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("brand-new-pass")))

	// A reset token is single use.
	err := f.service.ResetPassword(ctx, tok, "another-pass")
	assert.ErrorIs(t, err, shared.ErrResetTokenInvalid)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.InitiatePasswordReset(ctx, "jane@example.com"))
	tok := f.dispatcher.resetTokens[0]

	f.service.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	err := f.service.ResetPassword(ctx, tok, "brand-new-pass")
	assert.ErrorIs(t, err, shared.ErrResetTokenInvalid)
	assert.Empty(t, f.store.resetTokens, "expired token must be evicted")
}

func TestResetPasswordUnknownToken(t *testing.T) {
	f := newFixture(t)

	err := f.service.ResetPassword(context.Background(), "no-such-token", "brand-new-pass")
	assert.ErrorIs(t, err, shared.ErrResetTokenInvalid)
}
