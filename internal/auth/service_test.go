package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/internal/users"
	pkgAuth "github.com/angelmondragon/catalog-backend/pkg/auth"
	"github.com/angelmondragon/catalog-backend/pkg/auth/session"
	"github.com/angelmondragon/catalog-backend/pkg/config"
	"github.com/angelmondragon/catalog-backend/pkg/db/dbtest"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
	"github.com/angelmondragon/catalog-backend/pkg/mailer"
)

type memorySessions struct {
	mu        sync.Mutex
	sessions  map[string]session.Session
	revokeErr error
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: map[string]session.Session{}}
}

func (m *memorySessions) Start(_ context.Context, userID uuid.UUID) (session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := session.Session{AccessID: uuid.NewString(), RefreshToken: uuid.NewString(), UserID: userID}
	m.sessions[sess.AccessID] = sess
	return sess, nil
}

func (m *memorySessions) Rotate(ctx context.Context, oldAccessID, refreshToken string) (session.Session, error) {
	m.mu.Lock()
	current, ok := m.sessions[oldAccessID]
	if !ok || current.RefreshToken != refreshToken {
		m.mu.Unlock()
		return session.Session{}, session.ErrInvalidRefreshToken
	}
	delete(m.sessions, oldAccessID)
	m.mu.Unlock()
	return m.Start(ctx, current.UserID)
}

func (m *memorySessions) Revoke(_ context.Context, accessID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revokeErr != nil {
		return m.revokeErr
	}
	delete(m.sessions, accessID)
	return nil
}

type memoryCooldowns struct {
	held map[string]bool
}

func (m *memoryCooldowns) OTPCooldownKey(email string) string { return "otp:" + email }

func (m *memoryCooldowns) AcquireCooldown(_ context.Context, key string, _ time.Duration) (bool, error) {
	if m.held[key] {
		return false, nil
	}
	m.held[key] = true
	return true, nil
}

type sentMail struct {
	template  string
	recipient string
	vars      map[string]any
}

type recordingMailer struct {
	sent []sentMail
	err  error
}

func (r *recordingMailer) Send(_ context.Context, templateID, recipient string, vars map[string]any) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sentMail{template: templateID, recipient: recipient, vars: vars})
	return nil
}

func (r *recordingMailer) lastOTP(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, r.sent)
	code, ok := r.sent[len(r.sent)-1].vars["OTP"].(string)
	require.True(t, ok)
	return code
}

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "catalog", ExpirationMinutes: 30, RefreshTokenTTLMinutes: 120}

type fixture struct {
	conn      *gorm.DB
	svc       Service
	impl      *service
	sessions  *memorySessions
	mail      *recordingMailer
	cooldowns *memoryCooldowns
}

func newFixture(t *testing.T, strictMail bool) fixture {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()
	sessions := newMemorySessions()
	mail := &recordingMailer{}
	cooldowns := &memoryCooldowns{held: map[string]bool{}}

	svc, err := NewService(ServiceParams{
		DB:             client,
		Users:          users.NewRepository(conn),
		OTPs:           NewOTPRepository(conn),
		SessionManager: sessions,
		Cooldowns:      cooldowns,
		Mailer:         mail,
		Logger:         logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		JWTConfig:      testJWT,
		PasswordConfig: config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1},
		OTPConfig:      config.OTPConfig{TTL: 10 * time.Minute, ResendCooldown: time.Minute},
		StrictMail:     strictMail,
	})
	require.NoError(t, err)
	return fixture{conn: conn, svc: svc, impl: svc.(*service), sessions: sessions, mail: mail, cooldowns: cooldowns}
}

func register(t *testing.T, f fixture, email string) *RegisterResponse {
	t.Helper()
	resp, err := f.svc.Register(context.Background(), RegisterRequest{
		FirstName: "Ana", LastName: "Lopez", Email: email, Password: "s3cret-pass",
	})
	require.NoError(t, err)
	return resp
}

func TestRegisterVerifyLogin(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	resp := register(t, f, "  Ana@Example.com ")
	require.Equal(t, "ana@example.com", resp.User.Email)
	require.False(t, resp.User.EmailVerified)
	require.Equal(t, enums.UserRoleCustomer, resp.User.Role)
	require.Len(t, f.mail.sent, 1)
	require.Equal(t, mailer.TemplateVerifyEmail, f.mail.sent[0].template)

	_, err := f.svc.Login(ctx, LoginRequest{Email: "ana@example.com", Password: "s3cret-pass"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "unverified users cannot log in")

	verified, err := f.svc.VerifyEmail(ctx, VerifyEmailRequest{Email: "ana@example.com", OTP: f.mail.lastOTP(t)})
	require.NoError(t, err)
	require.True(t, verified.User.EmailVerified)
	require.NotEmpty(t, verified.RefreshToken)

	claims, err := pkgAuth.ParseAccessToken(testJWT, verified.AccessToken)
	require.NoError(t, err)
	require.Equal(t, resp.User.ID.String(), claims.Subject)
	require.Equal(t, "ana@example.com", claims.Email)
	require.Equal(t, enums.UserRoleCustomer, claims.Role)

	_, err = f.svc.VerifyEmail(ctx, VerifyEmailRequest{Email: "ana@example.com", OTP: f.mail.lastOTP(t)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBadRequest), "codes are single use")

	_, err = f.svc.Login(ctx, LoginRequest{Email: "ana@example.com", Password: "wrong"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	logged, err := f.svc.Login(ctx, LoginRequest{Email: "ANA@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	require.NotNil(t, logged.User.LastLoginAt)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t, false)
	register(t, f, "ana@example.com")

	_, err := f.svc.Register(context.Background(), RegisterRequest{
		FirstName: "Other", LastName: "Person", Email: "ANA@example.com", Password: "another-pass",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestVerifyEmailExpiredOTPIsBurned(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	register(t, f, "ana@example.com")
	code := f.mail.lastOTP(t)

	f.impl.now = func() time.Time { return time.Now().UTC().Add(11 * time.Minute) }
	_, err := f.svc.VerifyEmail(ctx, VerifyEmailRequest{Email: "ana@example.com", OTP: code})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBadRequest))

	var otp models.Otp
	require.NoError(t, f.conn.Where("email = ?", "ana@example.com").Take(&otp).Error)
	require.True(t, otp.IsUsed)

	var user models.User
	require.NoError(t, f.conn.Where("email = ?", "ana@example.com").Take(&user).Error)
	require.False(t, user.EmailVerified)
}

func TestResendOTPReplacesUnusedCodes(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	register(t, f, "ana@example.com")
	first := f.mail.lastOTP(t)

	resp, err := f.svc.ResendOTP(ctx, ResendOTPRequest{Email: "ana@example.com"})
	require.NoError(t, err)
	require.Equal(t, "10 minutes", resp.ExpiresIn)
	require.Equal(t, mailer.TemplateResendOTP, f.mail.sent[len(f.mail.sent)-1].template)

	var unused int64
	require.NoError(t, f.conn.Model(&models.Otp{}).Where("email = ? AND is_used = ?", "ana@example.com", false).Count(&unused).Error)
	require.Equal(t, int64(1), unused)

	second := f.mail.lastOTP(t)
	if first != second {
		_, err = f.svc.VerifyEmail(ctx, VerifyEmailRequest{Email: "ana@example.com", OTP: first})
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBadRequest))
	}

	_, err = f.svc.ResendOTP(ctx, ResendOTPRequest{Email: "ana@example.com"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeRateLimit))

	_, err = f.svc.VerifyEmail(ctx, VerifyEmailRequest{Email: "ana@example.com", OTP: second})
	require.NoError(t, err)

	delete(f.cooldowns.held, "otp:ana@example.com")
	_, err = f.svc.ResendOTP(ctx, ResendOTPRequest{Email: "ana@example.com"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBadRequest), "verified accounts need no code")

	_, err = f.svc.ResendOTP(ctx, ResendOTPRequest{Email: "nobody@example.com"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBadRequest))
}

func TestMailFailureHandling(t *testing.T) {
	lenient := newFixture(t, false)
	lenient.mail.err = errors.New("smtp down")
	_, err := lenient.svc.Register(context.Background(), RegisterRequest{
		FirstName: "Ana", LastName: "Lopez", Email: "ana@example.com", Password: "s3cret-pass",
	})
	require.NoError(t, err)

	strict := newFixture(t, true)
	strict.mail.err = errors.New("smtp down")
	_, err = strict.svc.Register(context.Background(), RegisterRequest{
		FirstName: "Ana", LastName: "Lopez", Email: "ana@example.com", Password: "s3cret-pass",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	register(t, f, "ana@example.com")
	tokens, err := f.svc.VerifyEmail(ctx, VerifyEmailRequest{Email: "ana@example.com", OTP: f.mail.lastOTP(t)})
	require.NoError(t, err)

	rotated, err := f.svc.Refresh(ctx, RefreshRequest{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
	require.NoError(t, err)
	require.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	_, err = f.svc.Refresh(ctx, RefreshRequest{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "old refresh tokens are single use")

	_, err = f.svc.Refresh(ctx, RefreshRequest{AccessToken: "garbage", RefreshToken: rotated.RefreshToken})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	claims, err := pkgAuth.ParseAccessToken(testJWT, rotated.AccessToken)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, claims.ID))
	require.Empty(t, f.sessions.sessions)

	_, err = f.svc.Refresh(ctx, RefreshRequest{AccessToken: rotated.AccessToken, RefreshToken: rotated.RefreshToken})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestRefreshDisabledUserLogsFailedRevoke(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	resp := register(t, f, "gone@example.com")
	tokens, err := f.svc.VerifyEmail(ctx, VerifyEmailRequest{Email: "gone@example.com", OTP: f.mail.lastOTP(t)})
	require.NoError(t, err)
	require.NoError(t, f.conn.Model(&models.User{}).Where("id = ?", resp.User.ID).Update("is_active", false).Error)

	var logs bytes.Buffer
	f.impl.logg = logger.New(logger.Options{ServiceName: "test", Output: &logs})
	f.sessions.revokeErr = errors.New("redis down")

	_, err = f.svc.Refresh(ctx, RefreshRequest{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	require.Contains(t, logs.String(), "auth.session_revoke_failed")
	require.Contains(t, logs.String(), "redis down")
}

func TestLoginUpgradesOutdatedHash(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	resp := register(t, f, "rehash@example.com")
	require.NoError(t, f.conn.Model(&models.User{}).Where("id = ?", resp.User.ID).Update("email_verified", true).Error)

	f.impl.passwordCfg.ArgonTime = 2
	_, err := f.svc.Login(ctx, LoginRequest{Email: "rehash@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	var stored models.User
	require.NoError(t, f.conn.First(&stored, "id = ?", resp.User.ID).Error)
	require.Contains(t, stored.PasswordHash, ",t=2,")

	_, err = f.svc.Login(ctx, LoginRequest{Email: "rehash@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
}
