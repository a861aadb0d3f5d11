package apikey

import (
	"resume-analyzer-go/internal/constants"
	"resume-analyzer-go/internal/types"
)

// tierLimitsTable 各订阅等级的limits查表。
// limits永远由等级派生，不单独持久化，改等级即改limits。
var tierLimitsTable = map[string]types.TierLimits{
	constants.TierFree: {
		DailyRequests:   100,
		MonthlyRequests: 2000,
		MaxFileSize:     constants.MaxFileSizeBytes,
		MaxBatchSize:    1,
		Features:        []string{"analyze", "industries", "ats_check"},
	},
	constants.TierPremium: {
		DailyRequests:   1000,
		MonthlyRequests: 25000,
		MaxFileSize:     constants.MaxFileSizeBytes,
		MaxBatchSize:    5,
		Features:        []string{"analyze", "industries", "ats_check", "bulk_analyze", "export"},
	},
	constants.TierEnterprise: {
		DailyRequests:   10000,
		MonthlyRequests: 300000,
		MaxFileSize:     constants.MaxFileSizeBytes,
		MaxBatchSize:    constants.MaxBulkFiles,
		Features:        []string{"analyze", "industries", "ats_check", "bulk_analyze", "export", "priority_queue"},
	},
}

// LimitsForTier 返回等级对应的limits，未知等级按free处理
func LimitsForTier(tier string) types.TierLimits {
	if limits, ok := tierLimitsTable[tier]; ok {
		return limits
	}
	return tierLimitsTable[constants.TierFree]
}

// ValidTier 等级名是否合法
func ValidTier(tier string) bool {
	_, ok := tierLimitsTable[tier]
	return ok
}

// HasFeature 等级是否包含指定feature
func HasFeature(tier, feature string) bool {
	for _, f := range LimitsForTier(tier).Features {
		if f == feature {
			return true
		}
	}
	return false
}
