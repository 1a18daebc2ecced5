package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pasarmalam/internal/model"
)

// ==================== 仓储接口 ====================

// GameCacheRepository 桌游搜索缓存仓储接口
type GameCacheRepository interface {
	// Get 查询未过期的缓存，未命中返回 nil, nil
	Get(ctx context.Context, query string, now time.Time) (*model.GameCache, error)
	Upsert(ctx context.Context, entry *model.GameCache) error
	Touch(ctx context.Context, id int64) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ==================== 仓储实现 ====================

type gameCacheRepo struct {
	db *gorm.DB
}

// NewGameCacheRepository 创建桌游搜索缓存仓储
func NewGameCacheRepository(db *gorm.DB) GameCacheRepository {
	return &gameCacheRepo{db: db}
}

func (r *gameCacheRepo) Get(ctx context.Context, query string, now time.Time) (*model.GameCache, error) {
	var entry model.GameCache
	err := r.db.WithContext(ctx).
		Where("query = ? AND expires_at > ?", query, now).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *gameCacheRepo) Upsert(ctx context.Context, entry *model.GameCache) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "query"}},
			DoUpdates: clause.AssignmentColumns([]string{"provider", "results", "expires_at", "updated_at"}),
		}).
		Create(entry).Error
}

// Touch 命中计数 +1
func (r *gameCacheRepo) Touch(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.GameCache{}).
		Where("id = ?", id).
		UpdateColumn("hit_count", gorm.Expr("hit_count + 1")).Error
}

// DeleteExpired 物理删除过期缓存（唯一索引不允许软删除残留）
func (r *gameCacheRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Unscoped().
		Where("expires_at <= ?", before).
		Delete(&model.GameCache{})
	return result.RowsAffected, result.Error
}
