package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bozorline/shop-backend/internal/users"
	pkgauth "github.com/bozorline/shop-backend/pkg/auth"
	"github.com/bozorline/shop-backend/pkg/config"
	"github.com/bozorline/shop-backend/pkg/db/models"
	"github.com/bozorline/shop-backend/pkg/enums"
	pkgerrors "github.com/bozorline/shop-backend/pkg/errors"
	redisclient "github.com/bozorline/shop-backend/pkg/redis"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type memUsers struct {
	byID map[uuid.UUID]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[uuid.UUID]*models.User{}}
}

func (m *memUsers) WithTx(tx *gorm.DB) users.UserRepository { return m }

func (m *memUsers) Create(ctx context.Context, user *models.User) error {
	for _, existing := range m.byID {
		if existing.Email == user.Email || existing.Username == user.Username {
			return errors.New("UNIQUE constraint failed: users.email")
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	clone := *user
	m.byID[user.ID] = &clone
	return nil
}

func (m *memUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Username == login || u.Email == login {
			clone := *u
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) MarkVerified(ctx context.Context, id uuid.UUID) error {
	if u, ok := m.byID[id]; ok {
		u.IsVerified = true
		return nil
	}
	return gorm.ErrRecordNotFound
}

type memCodes struct {
	data map[string]string
}

func newMemCodes() *memCodes {
	return &memCodes{data: map[string]string{}}
}

func (m *memCodes) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memCodes) Get(ctx context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redisclient.ErrNotFound
}

func (m *memCodes) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memCodes) VerificationKey(email string) string {
	return "bzl:verify:" + email
}

type memSessions struct {
	created []string
	revoked []string
}

func (m *memSessions) Create(ctx context.Context, accessID string) error {
	m.created = append(m.created, accessID)
	return nil
}

func (m *memSessions) Revoke(ctx context.Context, accessID string) error {
	m.revoked = append(m.revoked, accessID)
	return nil
}

type captureNotifier struct {
	email string
	code  string
}

func (c *captureNotifier) SendVerificationCode(ctx context.Context, email, code string) error {
	c.email = email
	c.code = code
	return nil
}

type harness struct {
	svc      Service
	repo     *memUsers
	codes    *memCodes
	sessions *memSessions
	notifier *captureNotifier
	jwtCfg   config.JWTConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		repo:     newMemUsers(),
		codes:    newMemCodes(),
		sessions: &memSessions{},
		notifier: &captureNotifier{},
		jwtCfg: config.JWTConfig{
			Secret:            "test-secret",
			Issuer:            "bozorline-test",
			ExpirationMinutes: 60,
			SessionTTLMinutes: 60,
		},
	}

	// minimal argon cost keeps the test fast
	svc, err := NewService(
		h.repo,
		h.codes,
		h.sessions,
		h.notifier,
		h.jwtCfg,
		config.PasswordConfig{ArgonMemoryKB: 8, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 8, ArgonKeyLen: 16},
		config.VerificationConfig{CodeTTL: time.Minute, CodeLength: 6},
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h.svc = svc
	return h
}

func (h *harness) register(t *testing.T) *UserDTO {
	t.Helper()

	user, err := h.svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return user
}

func TestRegisterVerifyLogin(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	user := h.register(t)
	if user.IsVerified {
		t.Fatal("fresh accounts must start unverified")
	}
	if user.Role != enums.UserRoleCustomer {
		t.Fatalf("expected customer role, got %s", user.Role)
	}
	if h.notifier.email != "alice@example.com" || len(h.notifier.code) != 6 {
		t.Fatalf("expected a 6-digit code sent to the account email, got %q for %q", h.notifier.code, h.notifier.email)
	}

	verified, err := h.svc.VerifyEmail(ctx, "alice@example.com", h.notifier.code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !verified.IsVerified {
		t.Fatal("verification must activate the account")
	}
	if len(h.codes.data) != 0 {
		t.Fatal("the verification code must be deleted after use")
	}

	result, err := h.svc.Login(ctx, LoginInput{Login: "alice", Password: "correct horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := pkgauth.ParseAccessToken(h.jwtCfg, result.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != enums.UserRoleCustomer {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(h.sessions.created) != 1 || h.sessions.created[0] != claims.ID {
		t.Fatalf("login must open a session for the token id, got %v", h.sessions.created)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	_, err := h.svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "short",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRegisterDuplicateAccount(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.register(t)

	_, err := h.svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct horse",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterNormalizesEmail(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	user, err := h.svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "  Alice@Example.COM ",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
}

func TestVerifyRejectsWrongCode(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.register(t)

	_, err := h.svc.VerifyEmail(context.Background(), "alice@example.com", "000000")
	if h.notifier.code == "000000" {
		t.Skip("generated code collided with the guess")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVerifyRejectsExpiredCode(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.register(t)

	// code drops out of the store, as it does after its TTL
	delete(h.codes.data, h.codes.VerificationKey("alice@example.com"))

	_, err := h.svc.VerifyEmail(context.Background(), "alice@example.com", h.notifier.code)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVerifyUnknownAccount(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	_, err := h.svc.VerifyEmail(context.Background(), "ghost@example.com", "123456")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVerifyIsIdempotentOnceVerified(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.register(t)
	ctx := context.Background()

	if _, err := h.svc.VerifyEmail(ctx, "alice@example.com", h.notifier.code); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// the code is gone, but a verified account stays verified
	user, err := h.svc.VerifyEmail(ctx, "alice@example.com", "anything")
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if !user.IsVerified {
		t.Fatal("account must stay verified")
	}
}

func TestLoginRequiresVerifiedAccount(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.register(t)

	_, err := h.svc.Login(context.Background(), LoginInput{Login: "alice", Password: "correct horse"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.register(t)
	ctx := context.Background()

	if _, err := h.svc.VerifyEmail(ctx, "alice@example.com", h.notifier.code); err != nil {
		t.Fatalf("verify: %v", err)
	}

	_, err := h.svc.Login(ctx, LoginInput{Login: "alice", Password: "wrong horse"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for bad password, got %v", err)
	}

	_, err = h.svc.Login(ctx, LoginInput{Login: "nobody", Password: "correct horse"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for unknown login, got %v", err)
	}
}

func TestLoginAcceptsEmailAsLogin(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.register(t)
	ctx := context.Background()

	if _, err := h.svc.VerifyEmail(ctx, "alice@example.com", h.notifier.code); err != nil {
		t.Fatalf("verify: %v", err)
	}

	result, err := h.svc.Login(ctx, LoginInput{Login: "alice@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("login by email: %v", err)
	}
	if result.User.Username != "alice" {
		t.Fatalf("unexpected account: %+v", result.User)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	if err := h.svc.Logout(ctx, "some-jti"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(h.sessions.revoked) != 1 || h.sessions.revoked[0] != "some-jti" {
		t.Fatalf("expected session revocation, got %v", h.sessions.revoked)
	}

	err := h.svc.Logout(ctx, "  ")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProfileReturnsAccount(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	user := h.register(t)

	profile, err := h.svc.Profile(ctx, user.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.ID != user.ID || profile.Username != "alice" || profile.Email != "alice@example.com" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestProfileUnknownAccount(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Profile(ctx, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
