package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/tresor/internal/auth"
	"github.com/BradenHooton/tresor/internal/models"
	pkgauth "github.com/BradenHooton/tresor/pkg/auth"
	pkglogger "github.com/BradenHooton/tresor/pkg/logger"
)

// Second-factor methods a pending login can be waiting on.
const (
	MFAMethodEmailCode = "email_code"
	MFAMethodTOTP      = "totp"
)

// LockoutPolicy is the bounded-attempt configuration. Zero MaxAttempts
// disables the counter.
type LockoutPolicy struct {
	MaxAttempts int
	Duration    time.Duration
}

// AuthService orchestrates registration, login, and second-factor
// verification.
type AuthService struct {
	users       UserRepository
	codes       *CodeService
	totp        *TOTPService
	captcha     CaptchaVerifier
	tm          *auth.TokenManager
	timing      *auth.TimingDelay
	lockout     LockoutPolicy
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewAuthService(
	users UserRepository,
	codes *CodeService,
	totp *TOTPService,
	captcha CaptchaVerifier,
	tm *auth.TokenManager,
	timing *auth.TimingDelay,
	lockout LockoutPolicy,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		users:       users,
		codes:       codes,
		totp:        totp,
		captcha:     captcha,
		tm:          tm,
		timing:      timing,
		lockout:     lockout,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UserResponse represents a user in HTTP responses
type UserResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	MFAEnabled bool   `json:"mfa_enabled"`
	Role       string `json:"role"`
	CreatedAt  string `json:"created_at"`
}

func toUserResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:         user.ID,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		MFAEnabled: user.MFAEnabled,
		Role:       user.Role,
		CreatedAt:  user.CreatedAt.Format(time.RFC3339),
	}
}

// LoginResponse is either a finished session or a pending second factor.
type LoginResponse struct {
	MFARequired  bool          `json:"mfa_required"`
	MFAMethod    string        `json:"mfa_method,omitempty"`
	PendingToken string        `json:"pending_token,omitempty"`
	SessionToken string        `json:"session_token,omitempty"`
	User         *UserResponse `json:"user,omitempty"`
}

// RegisterRequest carries a new account registration
type RegisterRequest struct {
	FirstName    string `json:"first_name" validate:"required,max=100"`
	LastName     string `json:"last_name" validate:"required,max=100"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required"`
	CaptchaToken string `json:"captcha_token"`
}

// Register creates a local account after the captcha check and password
// policy pass.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest, remoteIP string) (*UserResponse, error) {
	if err := s.captcha.Verify(ctx, req.CaptchaToken, remoteIP); err != nil {
		return nil, err
	}

	if err := pkgauth.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	hash, err := pkgauth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("password hashing failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.users.Create(ctx, &models.User{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
				EventType:     "register_failed",
				IPAddress:     remoteIP,
				FailureReason: "email_taken",
			})
		}
		return nil, err
	}

	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "register",
		UserID:    user.ID,
		IPAddress: remoteIP,
		Success:   true,
	})
	return toUserResponse(user), nil
}

// Login checks the password and starts the second-factor step. Unknown
// emails, wrong passwords, and locked accounts all take uniform time;
// unknown emails and wrong passwords are indistinguishable in the
// response.
func (s *AuthService) Login(ctx context.Context, email, password, remoteIP string) (*LoginResponse, error) {
	start := time.Now()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		s.timing.WaitFrom(start, false)
		return nil, models.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
				EventType:     "login_failed",
				IPAddress:     remoteIP,
				FailureReason: "invalid_credentials",
			})
			s.timing.WaitFrom(start, false)
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to load user for login", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.IsLocked() {
		s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     remoteIP,
			FailureReason: "account_locked",
		})
		s.timing.WaitFrom(start, false)
		return nil, models.ErrAccountLocked
	}

	if err := verifyPassword(user, password); err != nil {
		_ = s.users.RecordFailedAttempt(ctx, user.ID, s.lockout.MaxAttempts, s.lockout.Duration)
		s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     remoteIP,
			FailureReason: "invalid_credentials",
		})
		s.timing.WaitFrom(start, false)
		return nil, models.ErrInvalidCredentials
	}

	// Externally verified identities skip the email factor.
	if user.IsOAuthLinked() && !user.MFAEnabled {
		return s.completeLogin(ctx, user, remoteIP)
	}

	pendingToken, err := s.tm.IssuePending(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to issue pending token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	method := MFAMethodEmailCode
	if user.MFAEnabled {
		method = MFAMethodTOTP
	} else {
		if err := s.codes.Issue(ctx, user); err != nil {
			return nil, err
		}
	}

	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "login_password_ok",
		UserID:    user.ID,
		IPAddress: remoteIP,
		Success:   true,
	})
	return &LoginResponse{
		MFARequired:  true,
		MFAMethod:    method,
		PendingToken: pendingToken,
	}, nil
}

// VerifyEmailCode burns a one-time email code and finishes the login.
func (s *AuthService) VerifyEmailCode(ctx context.Context, userID, code, remoteIP string) (*LoginResponse, error) {
	start := time.Now()

	if err := s.codes.Consume(ctx, userID, code); err != nil {
		_ = s.users.RecordFailedAttempt(ctx, userID, s.lockout.MaxAttempts, s.lockout.Duration)
		s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
			EventType:     "mfa_failed",
			UserID:        userID,
			IPAddress:     remoteIP,
			FailureReason: "invalid_code",
		})
		s.timing.WaitFrom(start, false)
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.completeLogin(ctx, user, remoteIP)
}

// VerifyTOTP checks an authenticator code and finishes the login.
func (s *AuthService) VerifyTOTP(ctx context.Context, userID, code, remoteIP string) (*LoginResponse, error) {
	start := time.Now()

	if err := s.totp.Verify(ctx, userID, code); err != nil {
		_ = s.users.RecordFailedAttempt(ctx, userID, s.lockout.MaxAttempts, s.lockout.Duration)
		s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
			EventType:     "mfa_failed",
			UserID:        userID,
			IPAddress:     remoteIP,
			FailureReason: "invalid_totp",
		})
		s.timing.WaitFrom(start, false)
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.completeLogin(ctx, user, remoteIP)
}

// ResendCode issues a fresh email code for a pending login, invalidating
// the previous one.
func (s *AuthService) ResendCode(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFAEnabled {
		// Authenticator users have no emailed code to resend.
		return models.ErrBadRequest
	}
	return s.codes.Issue(ctx, user)
}

func (s *AuthService) completeLogin(ctx context.Context, user *models.User, remoteIP string) (*LoginResponse, error) {
	token, err := s.tm.IssueSession(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to issue session token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	_ = s.users.ClearFailedAttempts(ctx, user.ID)

	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: remoteIP,
		Success:   true,
	})
	return &LoginResponse{
		SessionToken: token,
		User:         toUserResponse(user),
	}, nil
}
