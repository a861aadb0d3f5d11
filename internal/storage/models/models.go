package models

import (
	"time"

	"gorm.io/datatypes"
)

// User API密钥归属的用户。一个用户可持有多个密钥；
// tier随任一密钥的等级变更同步更新。
type User struct {
	UserID    string    `gorm:"type:char(36);primaryKey"`
	Name      string    `gorm:"type:varchar(255);not null"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex:idx_users_email_unique"`
	Tier      string    `gorm:"type:varchar(20);not null;default:'free'"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// APIKey API密钥及其使用计数。
// limits不落库，始终由tier查表派生；计数采用惰性重置：
// daily_date/monthly_month与当前日期不一致时计数视为0。
type APIKey struct {
	Key          string         `gorm:"type:varchar(64);primaryKey"`
	UserID       string         `gorm:"type:char(36);not null;index:idx_api_keys_user_id"`
	Tier         string         `gorm:"type:varchar(20);not null;default:'free';index:idx_api_keys_tier"`
	Active       bool           `gorm:"not null;default:true;index:idx_api_keys_active"`
	TotalCount   int64          `gorm:"not null;default:0"`
	DailyCount   int            `gorm:"not null;default:0"`
	DailyDate    string         `gorm:"type:char(10)"` // YYYY-MM-DD
	MonthlyCount int            `gorm:"not null;default:0"`
	MonthlyMonth string         `gorm:"type:char(7)"` // YYYY-MM
	Metadata     datatypes.JSON `gorm:"type:json"`
	LastUsedAt   *time.Time     `gorm:"type:datetime(6);index:idx_api_keys_last_used_at"`
	CreatedAt    time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt    time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	User *User `gorm:"foreignKey:UserID;references:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (APIKey) TableName() string {
	return "api_keys"
}

// AdminSettings 管理后台可调阈值，单行表
type AdminSettings struct {
	ID                    uint      `gorm:"primaryKey"`
	ErrorRateWarn         float64   `gorm:"not null;default:0.1"`  // 错误率告警阈值
	CacheHitRateWarn      float64   `gorm:"not null;default:0.3"`  // 缓存命中率过低告警阈值
	ProcessingTimeWarnMS  int       `gorm:"not null;default:5000"` // 平均处理耗时告警阈值(毫秒)
	MaintenanceMode       bool      `gorm:"not null;default:false"`
	UpdatedBy             string    `gorm:"type:varchar(255)"`
	UpdatedAt             time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (AdminSettings) TableName() string {
	return "admin_settings"
}
