package dto

import (
	"time"

	"pasarmalam/internal/model"
)

// ==================== 挂单列表 ====================

// FeedQuery 市集列表筛选
type FeedQuery struct {
	Type     string `form:"type"`      // ALL | WTS | WTB | WTT | WTL
	Search   string `form:"q"`         // 标题关键字
	ShowSold bool   `form:"show_sold"` // 是否显示已售
}

// FeedResponse 市集列表
type FeedResponse struct {
	Listings  []model.Listing `json:"listings"`
	Total     int             `json:"total"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// MyListingsQuery 我的挂单筛选
type MyListingsQuery struct {
	Type string `form:"type"`
}

// MyListingsResponse 我的挂单及各类型计数
type MyListingsResponse struct {
	Listings []model.Listing `json:"listings"`
	Counts   map[string]int  `json:"counts"`
}

// ==================== 挂单操作 ====================

// UpdateStatusRequest 设置挂单状态，为空时在 active / sold 之间切换
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"omitempty,oneof=active sold"`
}

// UpdateStatusResponse 状态更新结果
type UpdateStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
