package task

import (
	"context"
	"sync/atomic"
	"time"

	"pasarmalam/pkg/logger"

	"go.uber.org/zap"
)

// FeedRefresher 拉取市集列表
type FeedRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

// ListingPollTask 定时轮询市集列表（后端不推送，只能轮询）
type ListingPollTask struct {
	feed    FeedRefresher
	timeout time.Duration
	log     *zap.Logger

	runs     atomic.Int64
	failures atomic.Int64
	lastOK   atomic.Int64 // unix 毫秒
}

func NewListingPollTask(feed FeedRefresher, timeout time.Duration, log *zap.Logger) *ListingPollTask {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &ListingPollTask{feed: feed, timeout: timeout, log: logger.OrNop(log)}
}

// Run 执行一次轮询，失败只记录日志，保留旧快照
func (t *ListingPollTask) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	t.runs.Add(1)
	n, err := t.feed.Refresh(ctx)
	if err != nil {
		t.failures.Add(1)
		t.log.Warn("[Poll] 市集列表刷新失败", zap.Error(err))
		return
	}
	t.lastOK.Store(time.Now().UnixMilli())
	t.log.Debug("[Poll] 市集列表已刷新", zap.Int("count", n))
}

// Stats 运行次数、失败次数、最近一次成功时间
func (t *ListingPollTask) Stats() (runs, failures int64, lastOK time.Time) {
	if ms := t.lastOK.Load(); ms > 0 {
		lastOK = time.UnixMilli(ms)
	}
	return t.runs.Load(), t.failures.Load(), lastOK
}
