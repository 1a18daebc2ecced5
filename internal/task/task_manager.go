package task

import (
	"context"
	"fmt"
	"time"

	"pasarmalam/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ==================== TaskManager 定时任务管理器 ====================

// TaskManager 统一管理定时任务，共用一个 cron（秒级）
// 管理范围：市集列表轮询、向导会话与缓存清理
type TaskManager struct {
	cron    *cron.Cron
	cfg     *TaskManagerConfig
	log     *zap.Logger
	poll    *ListingPollTask
	cleanup *SessionCleanupTask
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	Feed     FeedRefresher
	Sessions SessionSweeper
	Cache    CachePurger
	Log      *zap.Logger
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	// 市集列表轮询
	PollEnabled bool
	PollSpec    string
	PollTimeout time.Duration

	// 会话清理
	CleanupEnabled bool
	CleanupSpec    string
	SessionMaxIdle time.Duration
}

// DefaultConfig 默认配置：每 10 秒轮询，每分钟清理
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		PollEnabled: true,
		PollSpec:    "*/10 * * * * *",
		PollTimeout: 8 * time.Second,

		CleanupEnabled: true,
		CleanupSpec:    "0 * * * * *",
		SessionMaxIdle: 30 * time.Minute,
	}
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := logger.OrNop(deps.Log)

	// 上一轮未结束时跳过本轮
	cronLog := cron.PrintfLogger(zap.NewStdLog(log.Named("cron")))
	tm := &TaskManager{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		cfg: cfg,
		log: log,
	}

	if cfg.PollEnabled && deps.Feed != nil {
		tm.poll = NewListingPollTask(deps.Feed, cfg.PollTimeout, log)
	}
	if cfg.CleanupEnabled && (deps.Sessions != nil || deps.Cache != nil) {
		tm.cleanup = NewSessionCleanupTask(deps.Sessions, deps.Cache, cfg.SessionMaxIdle, log)
	}
	return tm
}

// ==================== 生命周期管理 ====================

// Start 注册并启动全部任务，首次轮询立即执行
func (tm *TaskManager) Start() error {
	tm.log.Info("[TaskManager] 正在启动定时任务...")

	if tm.poll != nil {
		if _, err := tm.cron.AddFunc(tm.cfg.PollSpec, func() { tm.poll.Run(context.Background()) }); err != nil {
			return fmt.Errorf("schedule listing poll: %w", err)
		}
		go tm.poll.Run(context.Background())
	}
	if tm.cleanup != nil {
		if _, err := tm.cron.AddFunc(tm.cfg.CleanupSpec, func() { tm.cleanup.Run(context.Background()) }); err != nil {
			return fmt.Errorf("schedule session cleanup: %w", err)
		}
	}

	tm.cron.Start()
	tm.log.Info("[TaskManager] 定时任务已启动",
		zap.Bool("poll", tm.poll != nil),
		zap.Bool("cleanup", tm.cleanup != nil),
	)
	return nil
}

// Stop 停止调度并等待正在执行的任务结束
func (tm *TaskManager) Stop(ctx context.Context) {
	tm.log.Info("[TaskManager] 正在停止定时任务...")
	done := tm.cron.Stop()
	select {
	case <-done.Done():
		tm.log.Info("[TaskManager] 定时任务已全部停止")
	case <-ctx.Done():
		tm.log.Warn("[TaskManager] 等待任务结束超时")
	}
}

// ==================== 手动触发接口 ====================

// TriggerPoll 立即轮询一次
func (tm *TaskManager) TriggerPoll(ctx context.Context) error {
	if tm.poll == nil {
		return ErrTaskDisabled
	}
	tm.poll.Run(ctx)
	return nil
}

// TriggerCleanup 立即清理一次
func (tm *TaskManager) TriggerCleanup(ctx context.Context) error {
	if tm.cleanup == nil {
		return ErrTaskDisabled
	}
	tm.cleanup.Run(ctx)
	return nil
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"poll":    tm.poll != nil,
		"cleanup": tm.cleanup != nil,
	}
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
