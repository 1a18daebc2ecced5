package model

import (
	"time"

	"gorm.io/datatypes"
)

// GameCache 桌游数据库搜索缓存（按规范化后的查询词）
type GameCache struct {
	BaseModel
	Query     string         `gorm:"size:255;uniqueIndex;not null;comment:规范化查询词" json:"query"`
	Provider  string         `gorm:"size:32;comment:数据源(backend/bgg)" json:"provider"`
	Results   datatypes.JSON `gorm:"type:json;comment:搜索结果" json:"results"`
	HitCount  int64          `gorm:"default:0;comment:命中次数" json:"hit_count"`
	ExpiresAt time.Time      `gorm:"index;comment:过期时间" json:"expires_at"`
}

func (GameCache) TableName() string {
	return "game_caches"
}

// Expired 是否过期
func (c *GameCache) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
