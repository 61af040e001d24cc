package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bozorline/shop-backend/internal/users"
	pkgauth "github.com/bozorline/shop-backend/pkg/auth"
	"github.com/bozorline/shop-backend/pkg/config"
	"github.com/bozorline/shop-backend/pkg/db"
	"github.com/bozorline/shop-backend/pkg/db/models"
	"github.com/bozorline/shop-backend/pkg/enums"
	pkgerrors "github.com/bozorline/shop-backend/pkg/errors"
	redisclient "github.com/bozorline/shop-backend/pkg/redis"
	"github.com/bozorline/shop-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type codeStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	VerificationKey(email string) string
}

type sessionManager interface {
	Create(ctx context.Context, accessID string) error
	Revoke(ctx context.Context, accessID string) error
}

// Service implements registration, email verification and token sessions.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*UserDTO, error)
	VerifyEmail(ctx context.Context, email, code string) (*UserDTO, error)
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	Logout(ctx context.Context, accessID string) error
	Profile(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
}

type service struct {
	repo     users.UserRepository
	codes    codeStore
	sessions sessionManager
	notifier CodeNotifier

	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	verifyCfg   config.VerificationConfig

	now func() time.Time
}

// NewService builds the auth service.
func NewService(
	repo users.UserRepository,
	codes codeStore,
	sessions sessionManager,
	notifier CodeNotifier,
	jwtCfg config.JWTConfig,
	passwordCfg config.PasswordConfig,
	verifyCfg config.VerificationConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if codes == nil {
		return nil, fmt.Errorf("code store required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("code notifier required")
	}
	return &service{
		repo:        repo,
		codes:       codes,
		sessions:    sessions,
		notifier:    notifier,
		jwtCfg:      jwtCfg,
		passwordCfg: passwordCfg,
		verifyCfg:   verifyCfg,
		now:         time.Now,
	}, nil
}

// Register creates an unverified account and issues its verification code.
func (s *service) Register(ctx context.Context, input RegisterInput) (*UserDTO, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" || email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username and email are required")
	}
	if len(input.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         enums.UserRoleCustomer,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "username or email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}

	if err := s.issueCode(ctx, email); err != nil {
		return nil, err
	}

	dto := toUserDTO(user)
	return &dto, nil
}

// VerifyEmail checks the pending code and activates the account. The code is
// single use: it is deleted the moment it matches.
func (s *service) VerifyEmail(ctx context.Context, email, code string) (*UserDTO, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and code are required")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user.IsVerified {
		dto := toUserDTO(user)
		return &dto, nil
	}

	key := s.codes.VerificationKey(email)
	stored, err := s.codes.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redisclient.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "verification code is invalid or expired")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load verification code")
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "verification code is invalid or expired")
	}

	if err := s.repo.MarkVerified(ctx, user.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark user verified")
	}
	_ = s.codes.Del(ctx, key)

	user.IsVerified = true
	dto := toUserDTO(user)
	return &dto, nil
}

// Login authenticates by username or email and opens a revocable session for
// the minted token.
func (s *service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	login := strings.TrimSpace(input.Login)
	if login == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "login and password are required")
	}

	user, err := s.repo.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	if !user.IsVerified {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is not verified")
	}

	jti := uuid.NewString()
	token, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    jti,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	if err := s.sessions.Create(ctx, jti); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create session")
	}

	return &LoginResult{AccessToken: token, User: toUserDTO(user)}, nil
}

// Logout revokes the session behind the given token id.
func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "access token id is required")
	}
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

// Profile returns the account behind an authenticated request.
func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	dto := toUserDTO(user)
	return &dto, nil
}

func (s *service) issueCode(ctx context.Context, email string) error {
	code, err := security.GenerateNumericCode(s.verifyCfg.CodeLength)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate verification code")
	}
	if err := s.codes.Set(ctx, s.codes.VerificationKey(email), code, s.verifyCfg.CodeTTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store verification code")
	}
	if err := s.notifier.SendVerificationCode(ctx, email, code); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send verification code")
	}
	return nil
}
