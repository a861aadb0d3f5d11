package apikey

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"resume-analyzer-go/internal/constants"
	"resume-analyzer-go/internal/storage/models"
)

// memoryRepo 内存密钥仓储，行为与MySQL仓储一致
type memoryRepo struct {
	keys  map[string]*models.APIKey
	users map[string]*models.User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		keys:  make(map[string]*models.APIKey),
		users: make(map[string]*models.User),
	}
}

func (r *memoryRepo) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	cp := *key
	r.keys[key.Key] = &cp
	return nil
}

func (r *memoryRepo) GetAPIKey(ctx context.Context, key string) (*models.APIKey, error) {
	record, ok := r.keys[key]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *record
	// 与MySQL仓储一致：预载归属用户
	if user, ok := r.users[record.UserID]; ok {
		u := *user
		cp.User = &u
	}
	return &cp, nil
}

func (r *memoryRepo) SaveAPIKey(ctx context.Context, key *models.APIKey) error {
	cp := *key
	r.keys[key.Key] = &cp
	return nil
}

func (r *memoryRepo) ListAPIKeys(ctx context.Context) ([]models.APIKey, error) {
	var out []models.APIKey
	for _, record := range r.keys {
		out = append(out, *record)
	}
	return out, nil
}

func (r *memoryRepo) DeleteInactiveKeysBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	for k, record := range r.keys {
		if !record.Active && record.CreatedAt.Before(cutoff) {
			delete(r.keys, k)
			removed++
		}
	}
	return removed, nil
}

func (r *memoryRepo) CreateUser(ctx context.Context, user *models.User) error {
	cp := *user
	r.users[user.UserID] = &cp
	return nil
}

func (r *memoryRepo) SaveUser(ctx context.Context, user *models.User) error {
	cp := *user
	r.users[user.UserID] = &cp
	return nil
}

func (r *memoryRepo) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, ok := r.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *memoryRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func newTestManager(t *testing.T) (*Manager, *time.Time) {
	t.Helper()
	m := NewManager(newMemoryRepo())
	clock := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	return m, &clock
}

func TestCreateKey(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	info, err := m.CreateKey(ctx, "Alice", "alice@example.com", "")
	require.NoError(t, err)

	assert.True(t, info.Active)
	assert.Equal(t, constants.TierFree, info.Tier)
	assert.Equal(t, "Alice", info.Name)
	assert.True(t, strings.HasPrefix(info.Key, "ra_"))
	assert.Len(t, info.Key, len("ra_")+keyNumBytes*2)
	assert.Equal(t, 100, info.Limits.DailyRequests)

	_, err = m.CreateKey(ctx, "Bob", "bob@example.com", "platinum")
	assert.ErrorIs(t, err, ErrInvalidTier)
}

func TestCreateKeySameEmailReusesUser(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.CreateKey(ctx, "Alice", "alice@example.com", constants.TierFree)
	require.NoError(t, err)

	// 同邮箱第二把密钥挂在同一用户下，不触发重复插入
	second, err := m.CreateKey(ctx, "Alice", "alice@example.com", constants.TierFree)
	require.NoError(t, err)

	assert.Equal(t, first.UserID, second.UserID)
	assert.NotEqual(t, first.Key, second.Key)
}

func TestUpdateTierPropagatesToUser(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	info, err := m.CreateKey(ctx, "Alice", "alice@example.com", constants.TierFree)
	require.NoError(t, err)

	_, err = m.UpdateTier(ctx, info.Key, constants.TierEnterprise)
	require.NoError(t, err)

	user, err := m.repo.GetUser(ctx, info.UserID)
	require.NoError(t, err)
	assert.Equal(t, constants.TierEnterprise, user.Tier)
}

func TestKeyInfoCarriesUserIdentity(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	created, err := m.CreateKey(ctx, "Alice", "alice@example.com", constants.TierFree)
	require.NoError(t, err)

	info, err := m.GetKeyInfo(ctx, created.Key)
	require.NoError(t, err)
	assert.Equal(t, "Alice", info.Name)
	assert.Equal(t, "alice@example.com", info.Email)
}

func TestFreeTierDailyQuota(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()

	info, err := m.CreateKey(ctx, "Alice", "alice@example.com", constants.TierFree)
	require.NoError(t, err)
	key := info.Key

	daily := LimitsForTier(constants.TierFree).DailyRequests

	// 恰好dailyRequests次校验通过，每次通过后记一次用量
	for i := 0; i < daily; i++ {
		_, err := m.Validate(ctx, key)
		require.NoErrorf(t, err, "第%d次校验不应失败", i+1)
		require.NoError(t, m.RecordUsage(ctx, key))
	}

	// 第dailyRequests+1次触发日配额
	_, err = m.Validate(ctx, key)
	assert.ErrorIs(t, err, ErrDailyLimitExceeded)

	// 翻天后计数归零，校验恢复
	*clock = clock.Add(24 * time.Hour)
	got, err := m.Validate(ctx, key)
	require.NoError(t, err)
	assert.Zero(t, got.DailyUsed)

	// 月计数同月内不随翻天重置
	assert.Equal(t, daily, got.MonthlyUsed)
}

func TestMonthlyQuota(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()

	info, err := m.CreateKey(ctx, "Alice", "alice@example.com", constants.TierFree)
	require.NoError(t, err)
	key := info.Key

	// 直接把月计数推到上限
	record, err := m.repo.GetAPIKey(ctx, key)
	require.NoError(t, err)
	record.MonthlyCount = LimitsForTier(constants.TierFree).MonthlyRequests
	require.NoError(t, m.repo.SaveAPIKey(ctx, record))

	_, err = m.Validate(ctx, key)
	assert.ErrorIs(t, err, ErrMonthlyLimitExceeded)

	// 翻月后恢复
	*clock = clock.AddDate(0, 1, 0)
	_, err = m.Validate(ctx, key)
	assert.NoError(t, err)
}

func TestValidateRejectsUnknownAndInactive(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Validate(ctx, "ra_nonexistent")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = m.Validate(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidKey)

	info, err := m.CreateKey(ctx, "Alice", "alice@example.com", constants.TierFree)
	require.NoError(t, err)
	require.NoError(t, m.DeactivateKey(ctx, info.Key))

	_, err = m.Validate(ctx, info.Key)
	assert.ErrorIs(t, err, ErrInactiveKey)
}

func TestUpdateTier(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	info, err := m.CreateKey(ctx, "Alice", "alice@example.com", constants.TierFree)
	require.NoError(t, err)

	upgraded, err := m.UpdateTier(ctx, info.Key, constants.TierPremium)
	require.NoError(t, err)
	assert.Equal(t, constants.TierPremium, upgraded.Tier)
	assert.Equal(t, 1000, upgraded.Limits.DailyRequests)
	assert.Contains(t, upgraded.Limits.Features, "bulk_analyze")

	_, err = m.UpdateTier(ctx, info.Key, "gold")
	assert.ErrorIs(t, err, ErrInvalidTier)
}

func TestTierFeatures(t *testing.T) {
	assert.False(t, HasFeature(constants.TierFree, "bulk_analyze"))
	assert.True(t, HasFeature(constants.TierPremium, "bulk_analyze"))
	assert.True(t, HasFeature(constants.TierPremium, "export"))
	assert.True(t, HasFeature(constants.TierEnterprise, "priority_queue"))
	assert.False(t, HasFeature(constants.TierPremium, "priority_queue"))

	// 未知等级按free处理
	assert.Equal(t, LimitsForTier(constants.TierFree), LimitsForTier("unknown"))
}

func TestKeyErrorUnwrap(t *testing.T) {
	err := &KeyError{Key: "ra_0123456789abcdef", Op: "validate", BaseErr: ErrDailyLimitExceeded}
	assert.True(t, errors.Is(err, ErrDailyLimitExceeded))
	assert.False(t, errors.Is(err, ErrMonthlyLimitExceeded))
	// 错误信息只暴露密钥前缀
	assert.NotContains(t, err.Error(), "89abcdef")
}
