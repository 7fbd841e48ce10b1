package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/internal/users"
	pkgAuth "github.com/angelmondragon/catalog-backend/pkg/auth"
	"github.com/angelmondragon/catalog-backend/pkg/auth/session"
	"github.com/angelmondragon/catalog-backend/pkg/config"
	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
	"github.com/angelmondragon/catalog-backend/pkg/mailer"
	"github.com/angelmondragon/catalog-backend/pkg/security"
)

const (
	invalidCredentialsMessage = "invalid email or password"
	unverifiedMessage         = "please verify your email before logging in"
)

// Service defines the behavior needed by the auth controller.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	VerifyEmail(ctx context.Context, req VerifyEmailRequest) (*TokenResponse, error)
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	ResendOTP(ctx context.Context, req ResendOTPRequest) (*ResendOTPResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error)
	Logout(ctx context.Context, accessID string) error
}

type sessionManager interface {
	Start(ctx context.Context, userID uuid.UUID) (session.Session, error)
	Rotate(ctx context.Context, oldAccessID, refreshToken string) (session.Session, error)
	Revoke(ctx context.Context, accessID string) error
}

type cooldownStore interface {
	OTPCooldownKey(email string) string
	AcquireCooldown(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	DB             db.TxRunner
	Users          *users.Repository
	OTPs           *OTPRepository
	SessionManager sessionManager
	Cooldowns      cooldownStore
	Mailer         mailer.Sender
	Logger         *logger.Logger
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	OTPConfig      config.OTPConfig
	// StrictMail propagates delivery failures instead of logging them.
	StrictMail bool
}

type service struct {
	db          db.TxRunner
	users       *users.Repository
	otps        *OTPRepository
	session     sessionManager
	cooldowns   cooldownStore
	mail        mailer.Sender
	logg        *logger.Logger
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	otpCfg      config.OTPConfig
	strictMail  bool
	now         func() time.Time
}

// NewService constructs the identity service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.DB == nil:
		return nil, fmt.Errorf("db client is required")
	case params.Users == nil:
		return nil, fmt.Errorf("user repository is required")
	case params.OTPs == nil:
		return nil, fmt.Errorf("otp repository is required")
	case params.SessionManager == nil:
		return nil, fmt.Errorf("session manager is required")
	case params.Cooldowns == nil:
		return nil, fmt.Errorf("cooldown store is required")
	case params.Mailer == nil:
		return nil, fmt.Errorf("mailer is required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	}
	if params.OTPConfig.TTL <= 0 {
		params.OTPConfig.TTL = 10 * time.Minute
	}
	return &service{
		db:          params.DB,
		users:       params.Users,
		otps:        params.OTPs,
		session:     params.SessionManager,
		cooldowns:   params.Cooldowns,
		mail:        params.Mailer,
		logg:        params.Logger,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		otpCfg:      params.OTPConfig,
		strictMail:  params.StrictMail,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register creates an unverified customer and mails a verification code.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	email := users.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid password")
	}
	code, err := security.GenerateOTP()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate otp")
	}

	var user *models.User
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.users.WithTx(tx)
		taken, err := userRepo.EmailTaken(ctx, email)
		if err != nil {
			return db.StoreError(err, "check user email")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "user with this email already exists")
		}

		created, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    strings.TrimSpace(req.FirstName),
			LastName:     strings.TrimSpace(req.LastName),
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "user with this email already exists")
			}
			return db.StoreError(err, "create user")
		}
		if _, err := s.otps.WithTx(tx).Replace(ctx, email, code); err != nil {
			return db.StoreError(err, "store otp")
		}
		user = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.sendOTP(ctx, mailer.TemplateVerifyEmail, user.Email, user.FirstName, code); err != nil {
		return nil, err
	}
	return &RegisterResponse{User: users.FromModel(user)}, nil
}

// VerifyEmail consumes the newest matching code. An expired code is burned
// before the error is returned.
func (s *service) VerifyEmail(ctx context.Context, req VerifyEmailRequest) (*TokenResponse, error) {
	email := users.NormalizeEmail(req.Email)
	code := strings.TrimSpace(req.OTP)

	otp, err := s.otps.FindLatestUnused(ctx, email, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid otp")
		}
		return nil, db.StoreError(err, "load otp")
	}

	now := s.now()
	if now.Sub(otp.CreatedAt) > s.otpCfg.TTL {
		if err := s.otps.MarkUsed(ctx, otp.ID); err != nil {
			return nil, db.StoreError(err, "expire otp")
		}
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "otp has expired, please request a new one")
	}

	var user *models.User
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.otps.WithTx(tx).MarkUsed(ctx, otp.ID); err != nil {
			return db.StoreError(err, "consume otp")
		}
		userRepo := s.users.WithTx(tx)
		found, err := userRepo.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeBadRequest, "user not found")
			}
			return db.StoreError(err, "load user")
		}
		if _, err := userRepo.MarkVerified(ctx, found.ID); err != nil {
			return db.StoreError(err, "verify user")
		}
		found.EmailVerified = true
		user = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.issue(ctx, user, now)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if !user.EmailVerified {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, unverifiedMessage)
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, db.StoreError(err, "update last login")
	}
	user.LastLoginAt = &now
	return s.issue(ctx, user, now)
}

// ResendOTP issues a fresh code for an unverified account. Requests inside
// the cooldown window are rejected.
func (s *service) ResendOTP(ctx context.Context, req ResendOTPRequest) (*ResendOTPResponse, error) {
	email := users.NormalizeEmail(req.Email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "user not found")
		}
		return nil, db.StoreError(err, "load user")
	}
	if user.EmailVerified {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "email is already verified")
	}

	if s.otpCfg.ResendCooldown > 0 {
		ok, err := s.cooldowns.AcquireCooldown(ctx, s.cooldowns.OTPCooldownKey(email), s.otpCfg.ResendCooldown)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "otp cooldown unavailable")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "please wait before requesting another code")
		}
	}

	code, err := security.GenerateOTP()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate otp")
	}
	if _, err := s.otps.Replace(ctx, email, code); err != nil {
		return nil, db.StoreError(err, "store otp")
	}
	if err := s.sendOTP(ctx, mailer.TemplateResendOTP, email, user.FirstName, code); err != nil {
		return nil, err
	}

	return &ResendOTPResponse{
		Email:     email,
		ExpiresIn: fmt.Sprintf("%d minutes", int(s.otpCfg.TTL/time.Minute)),
	}, nil
}

// Refresh rotates the session named by the access token's jti.
func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, strings.TrimSpace(req.AccessToken))
	if err != nil || claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}

	next, err := s.session.Rotate(ctx, claims.ID, req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	user, err := s.users.FindByID(ctx, next.UserID)
	if err != nil {
		s.revokeRotated(ctx, next.AccessID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, db.StoreError(err, "load user")
	}
	if !user.IsActive {
		s.revokeRotated(ctx, next.AccessID)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account disabled")
	}

	return s.mint(user, next, s.now())
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session")
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := users.NormalizeEmail(email)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, input)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, db.StoreError(err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if security.NeedsRehash(user.PasswordHash, s.passwordCfg) {
		s.upgradeHash(ctx, user, password)
	}
	return user, nil
}

// revokeRotated drops a session issued moments earlier for a user that can no
// longer sign in. The refresh is refused either way.
func (s *service) revokeRotated(ctx context.Context, accessID string) {
	if err := s.session.Revoke(ctx, accessID); err != nil {
		s.logg.WarnErr(s.logg.WithField(ctx, "access_id", accessID), "auth.session_revoke_failed", err)
	}
}

// upgradeHash re-encodes a verified password under the current argon2
// parameters. Failures leave the old hash in place.
func (s *service) upgradeHash(ctx context.Context, user *models.User, password string) {
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		s.logg.WarnErr(s.logg.WithField(ctx, "user_id", user.ID.String()), "auth.password_rehash_failed", err)
		return
	}
	user.PasswordHash = hash
}

func (s *service) issue(ctx context.Context, user *models.User, now time.Time) (*TokenResponse, error) {
	sess, err := s.session.Start(ctx, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return s.mint(user, sess, now)
}

func (s *service) mint(user *models.User, sess session.Session, now time.Time) (*TokenResponse, error) {
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    sess.AccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: sess.RefreshToken,
		User:         users.FromModel(user),
	}, nil
}

func (s *service) sendOTP(ctx context.Context, templateID, email, firstName, code string) error {
	err := s.mail.Send(ctx, templateID, email, map[string]any{
		"FirstName":  firstName,
		"OTP":        code,
		"TTLMinutes": int(s.otpCfg.TTL / time.Minute),
	})
	if err == nil {
		return nil
	}
	if s.strictMail {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send verification email")
	}
	s.logg.WarnErr(s.logg.WithField(ctx, "template", templateID), "auth.email_delivery_failed", err)
	return nil
}
