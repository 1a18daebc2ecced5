package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== CooldownLimiter 冷却限流器 ====================

// CooldownLimiter 按 key 的冷却限流器
// 防止用户连续触发 AI 识图 / 解析，把上游额度打满
type CooldownLimiter struct {
	locks sync.Map // key -> *lockEntry
	now   func() time.Time
}

// lockEntry 锁条目
type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// NewCooldownLimiter 创建限流器
func NewCooldownLimiter() *CooldownLimiter {
	return &CooldownLimiter{now: time.Now}
}

// 全局限流器实例
var globalLimiter = NewCooldownLimiter()

// GetLimiter 获取全局限流器
func GetLimiter() *CooldownLimiter {
	return globalLimiter
}

// ==================== 限流检查 ====================

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 剩余冷却时间
}

// Check 检查是否允许执行，允许时记录本次执行时间
// key: 限流键，如 "user:abc:scan"
// interval: 冷却间隔
func (r *CooldownLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := r.now()
	elapsed := now.Sub(entry.lastTime)

	if elapsed < interval {
		return CheckResult{
			Allowed:    false,
			RetryAfter: interval - elapsed,
		}
	}

	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 重置指定 key 的限流
func (r *CooldownLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// ==================== Key 生成工具 ====================

// AIKind AI 调用类型
type AIKind string

const (
	AIKindScan  AIKind = "scan"
	AIKindParse AIKind = "parse"
)

// UserAIKey 生成用户级 AI 限流 Key
func UserAIKey(userID string, kind AIKind) string {
	return fmt.Sprintf("user:%s:%s", userID, kind)
}

// ==================== 默认限流间隔 ====================

// DefaultIntervals 默认冷却间隔
var DefaultIntervals = map[AIKind]time.Duration{
	AIKindScan:  5 * time.Second,
	AIKindParse: 3 * time.Second,
}

// GetInterval 获取默认间隔
func GetInterval(kind AIKind) time.Duration {
	if interval, ok := DefaultIntervals[kind]; ok {
		return interval
	}
	return 3 * time.Second
}

// ==================== Gin 中间件 ====================

// AICooldown AI 调用冷却中间件，按登录用户限流，未登录时按 IP
// interval 为 0 时使用默认值
func AICooldown(limiter *CooldownLimiter, kind AIKind, interval time.Duration) gin.HandlerFunc {
	if limiter == nil {
		limiter = GetLimiter()
	}
	if interval == 0 {
		interval = GetInterval(kind)
	}

	return func(c *gin.Context) {
		who := GetUserID(c)
		if who == "" {
			who = "ip:" + c.ClientIP()
		}

		result := limiter.Check(UserAIKey(who, kind), interval)
		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": formatRetryMessage(result.RetryAfter),
				"data": gin.H{
					"retry_after": int(result.RetryAfter.Seconds()) + 1,
					"kind":        kind,
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// formatRetryMessage 格式化重试提示信息
func formatRetryMessage(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return fmt.Sprintf("Please wait %d seconds before trying again.", seconds)
}
