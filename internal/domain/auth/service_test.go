package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"invoicegen/internal/core/apperror"
	"invoicegen/internal/core/id"
	"invoicegen/internal/domain/audit"
)

type memUsers struct {
	mu    sync.Mutex
	users map[id.ID]*User
}

func (m *memUsers) Create(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(ctx context.Context, userID id.ID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperror.NewNotFound("user", userID)
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("user", email)
}

func (m *memUsers) Update(ctx context.Context, u *User) error {
	return m.Create(ctx, u)
}

func (m *memUsers) Exists(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken
}

func (m *memTokens) SaveRefreshToken(ctx context.Context, t *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.TokenHash] = t
	return nil
}

func (m *memTokens) GetRefreshToken(ctx context.Context, hash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[hash]; ok {
		return t, nil
	}
	return nil, apperror.NewNotFound("refresh_token", hash)
}

func (m *memTokens) RevokeRefreshToken(ctx context.Context, tokenID id.ID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, t := range m.tokens {
		if t.ID == tokenID {
			t.RevokedAt = &now
			t.RevokedReason = &reason
		}
	}
	return nil
}

func (m *memTokens) RevokeAllUserTokens(ctx context.Context, userID id.ID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			t.RevokedReason = &reason
		}
	}
	return nil
}

func (m *memTokens) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return 0, nil
}

type noTx struct{}

func (noTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(t *testing.T) (*Service, *audit.Recorder) {
	t.Helper()
	cfg := DefaultServiceConfig()
	cfg.BcryptCost = bcrypt.MinCost
	rec := &audit.Recorder{}
	svc := NewService(
		&memUsers{users: map[id.ID]*User{}},
		&memTokens{tokens: map[string]*RefreshToken{}},
		noTx{},
		NewJWTService(DefaultJWTConfig("test-secret")),
		rec,
		cfg,
	)
	return svc, rec
}

func TestRegister(t *testing.T) {
	svc, rec := newTestService(t)

	user, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "  Owner@Example.com ",
		Password: "correct-horse",
		Name:     "Owner",
	})
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", user.Email)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)
	assert.True(t, user.IsActive)

	require.Len(t, rec.Entries, 1)
	assert.Equal(t, audit.ActionUserRegistered, rec.Entries[0].Action)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "", Password: "long-enough"})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Register(ctx, RegisterRequest{Email: "not-an-email", Password: "long-enough"})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Register(ctx, RegisterRequest{Email: "a@b.c", Password: "short"})
	assert.True(t, apperror.IsValidation(err))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "a@b.c", Password: "long-enough"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterRequest{Email: "A@B.C", Password: "long-enough"})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConflict, appErr.Code)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterRequest{Email: "a@b.c", Password: "long-enough"})
	require.NoError(t, err)

	tokens, user, err := svc.Login(ctx, Credentials{Email: "A@b.c", Password: "long-enough"})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.NotEmpty(t, tokens.RefreshToken)

	userID, err := svc.ValidateAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.ID.String(), userID)
}

func TestLogin_WrongPasswordLocksAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "a@b.c", Password: "long-enough"})
	require.NoError(t, err)

	for i := 0; i < DefaultServiceConfig().MaxLoginAttempts; i++ {
		_, _, err = svc.Login(ctx, Credentials{Email: "a@b.c", Password: "wrong-password"})
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)
	}

	_, _, err = svc.Login(ctx, Credentials{Email: "a@b.c", Password: "long-enough"})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeForbidden, appErr.Code)
}

func TestLogin_UnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.Login(context.Background(), Credentials{Email: "nobody@b.c", Password: "x"})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)
}

func TestRefreshToken_Rotates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "a@b.c", Password: "long-enough"})
	require.NoError(t, err)
	tokens, _, err := svc.Login(ctx, Credentials{Email: "a@b.c", Password: "long-enough"})
	require.NoError(t, err)

	next, err := svc.RefreshToken(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, next.RefreshToken)

	// the old token is single-use
	_, err = svc.RefreshToken(ctx, tokens.RefreshToken)
	assert.Error(t, err)
}

func TestLogout_RevokesRefreshTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "a@b.c", Password: "long-enough"})
	require.NoError(t, err)
	tokens, user, err := svc.Login(ctx, Credentials{Email: "a@b.c", Password: "long-enough"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, user.ID))

	_, err = svc.RefreshToken(ctx, tokens.RefreshToken)
	assert.Error(t, err)
}

func TestJWTService_RejectsForeignSignature(t *testing.T) {
	issuer := NewJWTService(DefaultJWTConfig("secret-a"))
	verifier := NewJWTService(DefaultJWTConfig("secret-b"))

	token, _, err := issuer.GenerateAccessToken(id.New().String(), "a@b.c")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)

	uc, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", uc.Email)
	assert.NotEmpty(t, uc.SessionID)
}
