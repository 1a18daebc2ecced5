package task

import (
	"context"
	"time"

	"pasarmalam/pkg/logger"

	"go.uber.org/zap"
)

// SessionSweeper 清理空闲向导会话
type SessionSweeper interface {
	Sweep(maxIdle time.Duration) int
}

// CachePurger 清理过期的桌游搜索缓存
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int, int64, error)
}

// SessionCleanupTask 清理空闲向导会话与过期缓存
type SessionCleanupTask struct {
	sessions SessionSweeper
	cache    CachePurger
	maxIdle  time.Duration
	log      *zap.Logger
}

// NewSessionCleanupTask cache 可为 nil
func NewSessionCleanupTask(sessions SessionSweeper, cache CachePurger, maxIdle time.Duration, log *zap.Logger) *SessionCleanupTask {
	if maxIdle <= 0 {
		maxIdle = 30 * time.Minute
	}
	return &SessionCleanupTask{
		sessions: sessions,
		cache:    cache,
		maxIdle:  maxIdle,
		log:      logger.OrNop(log),
	}
}

// Run 执行一次清理
func (t *SessionCleanupTask) Run(ctx context.Context) {
	if t.sessions != nil {
		if n := t.sessions.Sweep(t.maxIdle); n > 0 {
			t.log.Info("[Cleanup] 清理空闲向导会话", zap.Int("count", n), zap.Duration("max_idle", t.maxIdle))
		}
	}

	if t.cache == nil {
		return
	}
	mem, db, err := t.cache.PurgeExpired(ctx)
	if err != nil {
		t.log.Warn("[Cleanup] 清理桌游缓存失败", zap.Error(err))
		return
	}
	if mem > 0 || db > 0 {
		t.log.Info("[Cleanup] 清理过期桌游缓存", zap.Int("memory", mem), zap.Int64("db", db))
	}
}
