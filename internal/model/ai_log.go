package model

// AICallLog AI调用日志
type AICallLog struct {
	BaseModel

	// 调用方
	UserID    string `gorm:"size:64;index;comment:用户ID"`
	SessionID string `gorm:"size:64;index;comment:向导会话ID"`

	// 调用信息
	CallType string `gorm:"size:32;index;comment:调用类型(scan/parse)"`
	Provider string `gorm:"size:32;comment:提供方(backend/gemini)"`

	// 结果
	InputBytes int   `gorm:"default:0;comment:输入大小"`
	ItemCount  int   `gorm:"default:0;comment:识别条目数"`
	DurationMs int64 `gorm:"comment:耗时(毫秒)"`

	// 状态
	Status   string `gorm:"size:32;index;default:success;comment:状态(success/failed)"`
	ErrorMsg string `gorm:"size:1024;comment:错误信息"`
}

func (AICallLog) TableName() string {
	return "ai_call_logs"
}

// ==================== 调用类型常量 ====================

const (
	AICallTypeScan  = "scan"
	AICallTypeParse = "parse"
)

// ==================== 状态常量 ====================

const (
	AICallStatusSuccess = "success"
	AICallStatusFailed  = "failed"
)
