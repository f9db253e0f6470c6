package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/session"
	"github.com/KMahesh2005/patient-management-by-mahesh/pkg/auth"
	"github.com/KMahesh2005/patient-management-by-mahesh/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account is temporarily locked due to multiple failed login attempts")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrMFARequired        = errors.New("one-time code required")
	ErrSessionExpired     = errors.New("session expired, please log in again")
)

const maxFailedAttempts = 5

const lockDuration = 15 * time.Minute

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateLoginAttempt(ctx context.Context, id uuid.UUID, success bool, lockUntil *time.Time) error
}

type AuthService struct {
	userRepo   UserRepository
	jwtManager *auth.JWTManager
	sessions   session.Store
	spool      *session.Spool
	auditSvc   *AuditService
	metrics    *metrics.Collector
	issuer     string
	log        *zap.Logger
}

func NewAuthService(
	userRepo UserRepository,
	jwtManager *auth.JWTManager,
	sessions session.Store,
	spool *session.Spool,
	auditSvc *AuditService,
	m *metrics.Collector,
	issuer string,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		sessions:   sessions,
		spool:      spool,
		auditSvc:   auditSvc,
		metrics:    m,
		issuer:     issuer,
		log:        log,
	}
}

// Login checks the operator's credentials and opens a desk session whose id
// is carried by both tokens.
func (s *AuthService) Login(ctx context.Context, username, password, otpCode, ip string) (*domain.TokenPair, *session.Session, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		// Hash anyway so response time does not reveal whether the user exists.
		_, _ = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.log.Error("failed to load user for login", zap.Error(err))
		}
		return nil, nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, nil, ErrAccountInactive
	}

	if user.IsLocked() {
		return nil, nil, ErrAccountLocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.recordFailure(ctx, user, username, ip)
		return nil, nil, ErrInvalidCredentials
	}

	if user.MFAEnabled {
		if otpCode == "" {
			return nil, nil, ErrMFARequired
		}
		if !auth.ValidateTOTP(otpCode, user.MFASecret) {
			s.recordFailure(ctx, user, username, ip)
			return nil, nil, ErrInvalidCredentials
		}
	}

	if err := s.userRepo.UpdateLoginAttempt(ctx, user.ID, true, nil); err != nil {
		s.log.Warn("failed to record successful login", zap.Error(err))
	}

	sess := session.New(user)
	if err := s.sessions.Save(ctx, sess); err != nil {
		s.log.Error("failed to create session", zap.Error(err))
		return nil, nil, fmt.Errorf("creating session: %w", err)
	}

	pair, err := s.jwtManager.GenerateTokenPair(claimsFor(sess))
	if err != nil {
		s.log.Error("failed to generate token pair", zap.Error(err))
		return nil, nil, fmt.Errorf("generating tokens: %w", err)
	}

	s.metrics.ActiveSessionsOpened.Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       user.ID,
		UserRole:     string(user.Role),
		Action:       string(domain.ActionLogin),
		ResourceType: "session",
		ResourceID:   sess.ID,
		IPAddress:    ip,
	})

	s.log.Info("operator logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("session_id", sess.ID),
		zap.String("ip", ip),
	)

	return pair, sess, nil
}

func (s *AuthService) recordFailure(ctx context.Context, user *domain.User, username, ip string) {
	var lockUntil *time.Time
	if user.FailedLoginCount+1 >= maxFailedAttempts {
		until := time.Now().Add(lockDuration)
		lockUntil = &until
	}
	if err := s.userRepo.UpdateLoginAttempt(ctx, user.ID, false, lockUntil); err != nil {
		s.log.Warn("failed to record failed login", zap.Error(err))
	}
	s.log.Warn("failed login attempt",
		zap.String("username", username),
		zap.String("ip", ip),
		zap.Bool("locked", lockUntil != nil),
	)
}

// Authenticate resolves an access token to its claims and live session.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*domain.Claims, *session.Session, error) {
	claims, err := s.jwtManager.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, nil, err
	}

	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, nil, ErrSessionExpired
		}
		return nil, nil, fmt.Errorf("loading session: %w", err)
	}
	if sess.OperatorID != claims.UserID {
		return nil, nil, ErrSessionExpired
	}
	return claims, sess, nil
}

// RefreshToken issues a new token pair for a session that is still open.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// Re-validate user is still active
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, ErrSessionExpired
	}

	return s.jwtManager.GenerateTokenPair(claimsFor(sess))
}

// Logout destroys the session and every file it had spooled.
func (s *AuthService) Logout(ctx context.Context, sess *session.Session, ip string) error {
	s.spool.Remove(sess.PendingIDs()...)
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       sess.OperatorID,
		UserRole:     string(sess.Role),
		Action:       string(domain.ActionLogout),
		ResourceType: "session",
		ResourceID:   sess.ID,
		IPAddress:    ip,
	})
	return nil
}

type CreateOperatorCommand struct {
	Username    string
	DisplayName string
	Password    string
	Role        domain.Role
	EnableMFA   bool
}

// CreateOperator adds a desk operator. When MFA is enabled the returned
// string is the otpauth:// URL to enrol an authenticator app.
func (s *AuthService) CreateOperator(ctx context.Context, cmd CreateOperatorCommand) (*domain.User, string, error) {
	cmd.Username = strings.ToLower(strings.TrimSpace(cmd.Username))
	cmd.DisplayName = strings.TrimSpace(cmd.DisplayName)

	var errs []string
	if cmd.Username == "" {
		errs = append(errs, "username is required")
	}
	if cmd.DisplayName == "" {
		errs = append(errs, "display_name is required")
	}
	if !cmd.Role.IsValid() {
		errs = append(errs, "role must be one of: admin doctor nurse receptionist")
	}
	if err := validatePasswordStrength(cmd.Password); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return nil, "", &ValidationError{Fields: errs}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	user := &domain.User{
		Username:          cmd.Username,
		DisplayName:       cmd.DisplayName,
		PasswordHash:      string(hash),
		Role:              cmd.Role,
		IsActive:          true,
		PasswordChangedAt: time.Now().UTC(),
	}

	var otpURL string
	if cmd.EnableMFA {
		secret, url, err := auth.GenerateTOTPSecret(s.issuer, cmd.Username)
		if err != nil {
			return nil, "", err
		}
		user.MFAEnabled = true
		user.MFASecret = secret
		otpURL = url
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			return nil, "", &ValidationError{Fields: []string{domain.ErrUsernameTaken.Error()}}
		}
		return nil, "", fmt.Errorf("creating operator: %w", err)
	}

	s.log.Info("operator created",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)),
	)
	return user, otpURL, nil
}

func claimsFor(sess *session.Session) *domain.Claims {
	return &domain.Claims{
		UserID:    sess.OperatorID,
		SessionID: sess.ID,
		Username:  sess.Username,
		Role:      sess.Role,
	}
}

func validatePasswordStrength(password string) error {
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters")
	}
	return nil
}
