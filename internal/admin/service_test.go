package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"resume-analyzer-go/internal/config"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.AdminConfig{Username: "admin", PasswordHash: string(hash)}
	return NewService(cfg, &config.UsageConfig{}, nil, nil, nil, nil, nil, nil)
}

func TestLoginBadCredentials(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Login(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = s.Login(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestLoginWithoutSessionStore(t *testing.T) {
	s := newTestService(t)

	// 凭据正确但Redis未配置时返回明确错误而不是panic
	_, err := s.Login(context.Background(), "admin", "s3cret")
	assert.ErrorIs(t, err, ErrSessionStoreDown)
}

func TestValidateSessionWithoutSessionStore(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.ValidateSession(ctx, "admsess_deadbeef")
	assert.ErrorIs(t, err, ErrSessionStoreDown)

	// 空token先报会话缺失
	_, err = s.ValidateSession(ctx, "")
	assert.ErrorIs(t, err, ErrNoSession)
}
