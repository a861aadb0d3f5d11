package apikey

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"resume-analyzer-go/internal/constants"
	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/storage/models"
	"resume-analyzer-go/internal/types"
	"resume-analyzer-go/pkg/utils"
)

const (
	keyPrefix   = "ra_"
	keyNumBytes = 24 // 前缀后跟48个hex字符

	dailyDateLayout    = "2006-01-02"
	monthlyMonthLayout = "2006-01"
)

// Repository 密钥持久化接口，由MySQL仓储实现
type Repository interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	GetAPIKey(ctx context.Context, key string) (*models.APIKey, error)
	SaveAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]models.APIKey, error)
	DeleteInactiveKeysBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CreateUser(ctx context.Context, user *models.User) error
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Manager 密钥生命周期与配额管理
type Manager struct {
	repo Repository

	// 测试可覆盖的时钟
	now func() time.Time
}

// NewManager 创建密钥管理器
func NewManager(repo Repository) *Manager {
	return &Manager{
		repo: repo,
		now:  time.Now,
	}
}

// CreateKey 为用户创建新密钥。邮箱已注册时复用已有用户，
// 一个用户可以持有多个密钥。等级非法时返回 ErrInvalidTier。
func (m *Manager) CreateKey(ctx context.Context, name, email, tier string) (*types.KeyInfo, error) {
	if tier == "" {
		tier = constants.TierFree
	}
	if !ValidTier(tier) {
		return nil, &KeyError{Op: "create", BaseErr: ErrInvalidTier, Detail: tier}
	}

	user, err := m.repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		// 已有用户追加密钥
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = &models.User{
			UserID: uuid.NewString(),
			Name:   name,
			Email:  email,
			Tier:   tier,
			Active: true,
		}
		if createErr := m.repo.CreateUser(ctx, user); createErr != nil {
			return nil, &KeyError{Op: "create", BaseErr: ErrStorageUnavailable, Detail: createErr.Error()}
		}
	default:
		return nil, &KeyError{Op: "create", BaseErr: ErrStorageUnavailable, Detail: err.Error()}
	}

	now := m.now()
	record := &models.APIKey{
		Key:          utils.RandomKey(keyPrefix, keyNumBytes),
		UserID:       user.UserID,
		Tier:         tier,
		Active:       true,
		DailyDate:    now.Format(dailyDateLayout),
		MonthlyMonth: now.Format(monthlyMonthLayout),
	}
	if err := m.repo.CreateAPIKey(ctx, record); err != nil {
		return nil, &KeyError{Op: "create", BaseErr: ErrStorageUnavailable, Detail: err.Error()}
	}

	logger.Info().
		Str("userId", user.UserID).
		Str("tier", tier).
		Msg("已创建新API密钥")

	info := m.toKeyInfo(record)
	info.Name = user.Name
	info.Email = user.Email
	return &info, nil
}

// Validate 校验密钥并检查配额。任何配额未超出时不增加计数，
// 计数增加由请求完成后的 RecordUsage 负责。
func (m *Manager) Validate(ctx context.Context, key string) (*types.KeyInfo, error) {
	record, err := m.lookup(ctx, key, "validate")
	if err != nil {
		return nil, err
	}

	if !record.Active {
		return nil, &KeyError{Key: key, Op: "validate", BaseErr: ErrInactiveKey}
	}

	m.lazyResetCounters(record)
	limits := LimitsForTier(record.Tier)

	if record.DailyCount >= limits.DailyRequests {
		return nil, &KeyError{Key: key, Op: "validate", BaseErr: ErrDailyLimitExceeded}
	}
	if record.MonthlyCount >= limits.MonthlyRequests {
		return nil, &KeyError{Key: key, Op: "validate", BaseErr: ErrMonthlyLimitExceeded}
	}

	info := m.toKeyInfo(record)
	return &info, nil
}

// RecordUsage 请求成功处理后累加计数并更新最后使用时间
func (m *Manager) RecordUsage(ctx context.Context, key string) error {
	record, err := m.lookup(ctx, key, "record")
	if err != nil {
		return err
	}

	m.lazyResetCounters(record)

	now := m.now()
	record.TotalCount++
	record.DailyCount++
	record.MonthlyCount++
	record.LastUsedAt = &now

	if err := m.repo.SaveAPIKey(ctx, record); err != nil {
		return &KeyError{Key: key, Op: "record", BaseErr: ErrStorageUnavailable, Detail: err.Error()}
	}
	return nil
}

// UpdateTier 修改密钥等级，limits随等级查表自动变化，
// 新等级同步到归属用户记录
func (m *Manager) UpdateTier(ctx context.Context, key, tier string) (*types.KeyInfo, error) {
	if !ValidTier(tier) {
		return nil, &KeyError{Key: key, Op: "update_tier", BaseErr: ErrInvalidTier, Detail: tier}
	}

	record, err := m.lookup(ctx, key, "update_tier")
	if err != nil {
		return nil, err
	}

	record.Tier = tier
	if err := m.repo.SaveAPIKey(ctx, record); err != nil {
		return nil, &KeyError{Key: key, Op: "update_tier", BaseErr: ErrStorageUnavailable, Detail: err.Error()}
	}

	user, err := m.repo.GetUser(ctx, record.UserID)
	if err != nil {
		return nil, &KeyError{Key: key, Op: "update_tier", BaseErr: ErrStorageUnavailable, Detail: err.Error()}
	}
	user.Tier = tier
	if err := m.repo.SaveUser(ctx, user); err != nil {
		return nil, &KeyError{Key: key, Op: "update_tier", BaseErr: ErrStorageUnavailable, Detail: err.Error()}
	}

	logger.Info().
		Str("key", maskKey(key)).
		Str("tier", tier).
		Msg("密钥等级已更新")

	info := m.toKeyInfo(record)
	return &info, nil
}

// DeactivateKey 停用密钥，历史计数保留
func (m *Manager) DeactivateKey(ctx context.Context, key string) error {
	record, err := m.lookup(ctx, key, "deactivate")
	if err != nil {
		return err
	}

	record.Active = false
	if err := m.repo.SaveAPIKey(ctx, record); err != nil {
		return &KeyError{Key: key, Op: "deactivate", BaseErr: ErrStorageUnavailable, Detail: err.Error()}
	}

	logger.Info().Str("key", maskKey(key)).Msg("密钥已停用")
	return nil
}

// ListKeys 列出全部密钥信息（管理后台用）
func (m *Manager) ListKeys(ctx context.Context) ([]types.KeyInfo, error) {
	records, err := m.repo.ListAPIKeys(ctx)
	if err != nil {
		return nil, &KeyError{Op: "list", BaseErr: ErrStorageUnavailable, Detail: err.Error()}
	}

	infos := make([]types.KeyInfo, 0, len(records))
	for i := range records {
		record := records[i]
		m.lazyResetCounters(&record)
		infos = append(infos, m.toKeyInfo(&record))
	}
	return infos, nil
}

// GetKeyInfo 查询单个密钥信息
func (m *Manager) GetKeyInfo(ctx context.Context, key string) (*types.KeyInfo, error) {
	record, err := m.lookup(ctx, key, "get")
	if err != nil {
		return nil, err
	}
	m.lazyResetCounters(record)
	info := m.toKeyInfo(record)
	return &info, nil
}

// CleanupInactive 删除长期未使用的停用密钥，返回删除数量
func (m *Manager) CleanupInactive(ctx context.Context) (int64, error) {
	cutoff := m.now().Add(-constants.InactiveKeySweepAge)
	removed, err := m.repo.DeleteInactiveKeysBefore(ctx, cutoff)
	if err != nil {
		return 0, &KeyError{Op: "cleanup", BaseErr: ErrStorageUnavailable, Detail: err.Error()}
	}
	if removed > 0 {
		logger.Info().Int64("removed", removed).Msg("已清理长期未使用的停用密钥")
	}
	return removed, nil
}

func (m *Manager) lookup(ctx context.Context, key, op string) (*models.APIKey, error) {
	if key == "" {
		return nil, &KeyError{Key: key, Op: op, BaseErr: ErrInvalidKey}
	}
	record, err := m.repo.GetAPIKey(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &KeyError{Key: key, Op: op, BaseErr: ErrInvalidKey}
		}
		return nil, &KeyError{Key: key, Op: op, BaseErr: ErrStorageUnavailable, Detail: err.Error()}
	}
	return record, nil
}

// lazyResetCounters 惰性重置：日期翻转后计数归零，不依赖定时任务
func (m *Manager) lazyResetCounters(record *models.APIKey) {
	now := m.now()

	today := now.Format(dailyDateLayout)
	if record.DailyDate != today {
		record.DailyDate = today
		record.DailyCount = 0
	}

	month := now.Format(monthlyMonthLayout)
	if record.MonthlyMonth != month {
		record.MonthlyMonth = month
		record.MonthlyCount = 0
	}
}

func (m *Manager) toKeyInfo(record *models.APIKey) types.KeyInfo {
	info := types.KeyInfo{
		Key:           record.Key,
		UserID:        record.UserID,
		Tier:          record.Tier,
		Active:        record.Active,
		Limits:        LimitsForTier(record.Tier),
		TotalRequests: record.TotalCount,
		DailyUsed:     record.DailyCount,
		MonthlyUsed:   record.MonthlyCount,
		CreatedAt:     record.CreatedAt,
		LastUsedAt:    record.LastUsedAt,
	}
	if record.User != nil {
		info.Name = record.User.Name
		info.Email = record.User.Email
	}
	return info
}
