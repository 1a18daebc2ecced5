package controller

import (
	"context"
	"net/http"
	"time"

	"pasarmalam/internal/api/dto"
	"pasarmalam/internal/middleware"
	"pasarmalam/internal/repository"

	"github.com/gin-gonic/gin"
)

// UsageReader AI 用量查询
type UsageReader interface {
	GetUsage(ctx context.Context, userID string, start, end time.Time) (*repository.AIUsageStats, error)
}

type AIController struct {
	usage UsageReader
	now   func() time.Time
}

func NewAIController(usage UsageReader) *AIController {
	return &AIController{usage: usage, now: time.Now}
}

// Usage 当前用户的 AI 调用统计，默认最近 30 天
// @Summary AI 用量
// @Tags AI
// @Param start query string false "开始日期 2006-01-02"
// @Param end query string false "结束日期 2006-01-02（含当天）"
// @Success 200 {object} repository.AIUsageStats
// @Router /api/ai/usage [get]
func (ctrl *AIController) Usage(c *gin.Context) {
	var q dto.AIUsageQuery
	_ = c.ShouldBindQuery(&q)

	end := ctrl.now()
	start := end.AddDate(0, 0, -30)

	if q.Start != "" {
		t, err := time.Parse(time.DateOnly, q.Start)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "start 格式应为 2006-01-02"})
			return
		}
		start = t
	}
	if q.End != "" {
		t, err := time.Parse(time.DateOnly, q.End)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "end 格式应为 2006-01-02"})
			return
		}
		end = t.Add(24*time.Hour - time.Nanosecond)
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "end 早于 start"})
		return
	}

	stats, err := ctrl.usage.GetUsage(c.Request.Context(), middleware.GetUserID(c), start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "查询失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    stats,
	})
}
