package dto

import (
	"pasarmalam/internal/model"
)

// ==================== 会话 ====================

// OpenWizardRequest 打开向导；带 listing 时进入编辑已有挂单模式
type OpenWizardRequest struct {
	ListingID string `json:"listingId"`
}

// ==================== 步骤选择 ====================

// SelectTypeRequest 选择挂单类型
type SelectTypeRequest struct {
	Type model.ListingType `json:"type" binding:"required"`
}

// SelectMethodRequest 选择获取方式
type SelectMethodRequest struct {
	Method string `json:"method" binding:"required"`
}

// ==================== 获取方式 ====================

// SearchQuery 桌游数据库搜索
type SearchQuery struct {
	Q string `form:"q" binding:"required"`
}

// SelectResultRequest 选中搜索结果（下标或数据库 ID 二选一）
type SelectResultRequest struct {
	Index *int   `json:"index"`
	ID    string `json:"id"`
}

// ScanRequest 拍照识别
type ScanRequest struct {
	Image string `json:"image" binding:"required"`
}

// ParseRequest 文本解析
type ParseRequest struct {
	Text string `json:"text"`
}

// ==================== 表单 ====================

// FormImagesRequest 表单追加图片
type FormImagesRequest struct {
	Images []string `json:"images" binding:"required,min=1"`
}

// IndexRequest 按下标操作图片
type IndexRequest struct {
	Index *int `json:"index" binding:"required"`
}

// ==================== 审核 ====================

// DraftPriceRequest 审核页行内改价
type DraftPriceRequest struct {
	Price string `json:"price"`
}

// DraftPriceResponse 改价结果，accepted=false 表示输入被拒绝并保留原值
type DraftPriceResponse struct {
	Accepted bool   `json:"accepted"`
	Price    string `json:"price"`
}

// ==================== AI 用量 ====================

// AIUsageQuery 用量统计区间，日期格式 2006-01-02
type AIUsageQuery struct {
	Start string `form:"start"`
	End   string `form:"end"`
}
