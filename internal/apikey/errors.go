package apikey

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrInvalidKey           = errors.New("API密钥不存在")
	ErrInactiveKey          = errors.New("API密钥已停用")
	ErrDailyLimitExceeded   = errors.New("超出每日请求配额")
	ErrMonthlyLimitExceeded = errors.New("超出每月请求配额")
	ErrFeatureNotAllowed    = errors.New("当前等级不支持该功能")
	ErrInvalidTier          = errors.New("未知的订阅等级")
	ErrStorageUnavailable   = errors.New("密钥存储不可用")
)

// KeyError 包含密钥上下文的自定义错误
type KeyError struct {
	Key     string
	Op      string
	BaseErr error
	Detail  string
}

func (e *KeyError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 密钥:%s): %s", e.BaseErr, e.Op, maskKey(e.Key), e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 密钥:%s)", e.BaseErr, e.Op, maskKey(e.Key))
}

func (e *KeyError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *KeyError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// maskKey 日志与错误信息中只保留密钥前8位
func maskKey(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8] + "..."
}
