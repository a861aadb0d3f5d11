package admin

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/bcrypt"

	"resume-analyzer-go/internal/apikey"
	"resume-analyzer-go/internal/cache"
	"resume-analyzer-go/internal/config"
	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/queue"
	"resume-analyzer-go/internal/storage"
	"resume-analyzer-go/internal/storage/models"
	"resume-analyzer-go/internal/usage"
	"resume-analyzer-go/pkg/utils"
)

var (
	ErrBadCredentials   = errors.New("用户名或密码错误")
	ErrNoSession        = errors.New("会话不存在或已过期")
	ErrSessionStoreDown = errors.New("会话存储不可用")
)

const sessionTokenPrefix = "admsess_"

// Service 管理后台服务：登录会话、系统概览、告警、维护模式、备份与导出
type Service struct {
	cfg     *config.AdminConfig
	mysql   *storage.MySQL
	redis   *storage.Redis
	keys    *apikey.Manager
	tracker *usage.Tracker
	cache   *cache.Cache
	queue   *queue.Queue

	auditPath string
	backupDir string
	auditMu   sync.Mutex

	// 维护模式标志的进程内镜像，请求路径上不打数据库
	maintenance atomic.Bool
}

// NewService 创建管理服务并从数据库加载维护模式标志
func NewService(cfg *config.AdminConfig, usageCfg *config.UsageConfig, mysql *storage.MySQL, redis *storage.Redis,
	keys *apikey.Manager, tracker *usage.Tracker, c *cache.Cache, q *queue.Queue) *Service {

	s := &Service{
		cfg:       cfg,
		mysql:     mysql,
		redis:     redis,
		keys:      keys,
		tracker:   tracker,
		cache:     c,
		queue:     q,
		auditPath: usageCfg.AdminAuditLog,
		backupDir: usageCfg.BackupDir,
	}

	if mysql != nil {
		if settings, err := mysql.GetAdminSettings(context.Background()); err == nil {
			s.maintenance.Store(settings.MaintenanceMode)
		}
	}
	return s
}

// Login 校验管理员凭据，成功后创建Redis会话并返回token
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if username != s.cfg.Username {
		return "", ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(password)); err != nil {
		return "", ErrBadCredentials
	}
	// 无Redis时无处存放会话，管理接口降级为不可用
	if s.redis == nil {
		return "", ErrSessionStoreDown
	}

	token := utils.RandomKey(sessionTokenPrefix, 24)
	if err := s.redis.CreateAdminSession(ctx, token, username); err != nil {
		return "", err
	}

	s.audit(username, "login", "")
	return token, nil
}

// ValidateSession 校验会话token，返回用户名
func (s *Service) ValidateSession(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrNoSession
	}
	if s.redis == nil {
		return "", ErrSessionStoreDown
	}
	username, err := s.redis.GetAdminSession(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrNoSession
		}
		return "", err
	}
	return username, nil
}

// Logout 注销会话
func (s *Service) Logout(ctx context.Context, token string) error {
	username, err := s.ValidateSession(ctx, token)
	if err != nil {
		return err
	}
	if err := s.redis.DeleteAdminSession(ctx, token); err != nil {
		return err
	}
	s.audit(username, "logout", "")
	return nil
}

// MaintenanceEnabled 维护模式是否开启
func (s *Service) MaintenanceEnabled() bool {
	return s.maintenance.Load()
}

// SetMaintenance 切换维护模式并落库
func (s *Service) SetMaintenance(ctx context.Context, username string, enabled bool) error {
	settings, err := s.mysql.GetAdminSettings(ctx)
	if err != nil {
		return err
	}
	settings.MaintenanceMode = enabled
	settings.UpdatedBy = username
	if err := s.mysql.SaveAdminSettings(ctx, settings); err != nil {
		return err
	}

	s.maintenance.Store(enabled)
	if enabled {
		s.audit(username, "maintenance_on", "")
	} else {
		s.audit(username, "maintenance_off", "")
	}
	return nil
}

// GetSettings 读取告警阈值配置
func (s *Service) GetSettings(ctx context.Context) (*models.AdminSettings, error) {
	return s.mysql.GetAdminSettings(ctx)
}

// UpdateSettings 更新告警阈值配置
func (s *Service) UpdateSettings(ctx context.Context, username string, errorRateWarn, cacheHitRateWarn float64, processingTimeWarnMS int) (*models.AdminSettings, error) {
	settings, err := s.mysql.GetAdminSettings(ctx)
	if err != nil {
		return nil, err
	}

	if errorRateWarn > 0 {
		settings.ErrorRateWarn = errorRateWarn
	}
	if cacheHitRateWarn > 0 {
		settings.CacheHitRateWarn = cacheHitRateWarn
	}
	if processingTimeWarnMS > 0 {
		settings.ProcessingTimeWarnMS = processingTimeWarnMS
	}
	settings.UpdatedBy = username

	if err := s.mysql.SaveAdminSettings(ctx, settings); err != nil {
		return nil, err
	}

	s.audit(username, "update_settings", "")
	return settings, nil
}

// UpdateKeyTier 修改密钥等级（审计）
func (s *Service) UpdateKeyTier(ctx context.Context, username, key, tier string) error {
	if _, err := s.keys.UpdateTier(ctx, key, tier); err != nil {
		return err
	}
	s.audit(username, "update_tier", tier)
	return nil
}

// DeactivateKey 停用密钥（审计）
func (s *Service) DeactivateKey(ctx context.Context, username, key string) error {
	if err := s.keys.DeactivateKey(ctx, key); err != nil {
		return err
	}
	s.audit(username, "deactivate_key", "")
	return nil
}

// auditEntry 管理操作审计记录
type auditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
}

// audit 追加一条审计记录，失败只告警
func (s *Service) audit(username, action, detail string) {
	if s.auditPath == "" {
		return
	}

	entry := auditEntry{
		Timestamp: time.Now().UTC(),
		Username:  username,
		Action:    action,
		Detail:    detail,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	line = append(line, '\n')

	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	if dir := filepath.Dir(s.auditPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn().Err(err).Msg("创建审计日志目录失败")
			return
		}
	}
	f, err := os.OpenFile(s.auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Warn().Err(err).Msg("打开审计日志失败")
		return
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		logger.Warn().Err(err).Msg("写入审计日志失败")
	}
}
