package utils

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// StringPtr 返回字符串的指针
func StringPtr(s string) *string {
	return &s
}

// TimePtr returns a pointer to a time.Time object
func TimePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// IntPtr returns a pointer to an int
func IntPtr(i int) *int {
	return &i
}

// CalculateMD5 computes the MD5 hash of a byte slice.
// 相同的简历文本无论文件名如何，总是映射到同一个缓存键
func CalculateMD5(data []byte) string {
	hasher := md5.New()
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}

// RandomKey 生成带前缀的高熵随机键，例如 "ra_3f9c..."。
// crypto/rand 读取系统熵源失败时无法安全降级，直接panic。
func RandomKey(prefix string, numBytes int) string {
	buf := make([]byte, numBytes)
	if _, err := rand.Read(buf); err != nil {
		panic("读取系统熵源失败: " + err.Error())
	}
	return prefix + hex.EncodeToString(buf)
}

// ConvertArrayToJSON 辅助函数: 将字符串数组转换为JSON
func ConvertArrayToJSON(arr []string) datatypes.JSON {
	if len(arr) == 0 {
		return datatypes.JSON("[]")
	}

	jsonBytes, err := json.Marshal(arr)
	if err != nil {
		// 处理简单数组时返回安全默认值而不是错误
		return datatypes.JSON("[]")
	}

	return datatypes.JSON(jsonBytes)
}
