package wizard

import (
	"context"
	"strings"
	"time"

	"pasarmalam/internal/model"
	"pasarmalam/pkg/logger"
	"pasarmalam/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// 描述最长保留字符数
const maxDescriptionRunes = 1000

// Enricher 按标题查桌游数据库，补全缺失的封面和简介
type Enricher struct {
	catalog  Catalog
	interval time.Duration
	log      *zap.Logger
}

// NewEnricher interval 为相邻两次查询的间隔，<=0 表示不限速
func NewEnricher(catalog Catalog, interval time.Duration, log *zap.Logger) *Enricher {
	return &Enricher{catalog: catalog, interval: interval, log: logger.OrNop(log)}
}

// NeedsEnrichment 有标题且缺少封面或简介
func NeedsEnrichment(d *model.DraftListing) bool {
	if strings.TrimSpace(d.Title) == "" {
		return false
	}
	return !d.HasCover() || strings.TrimSpace(d.Description) == ""
}

// Enrich 逐条顺序处理，返回新切片，入参不变
// 单条查询失败只记录日志；ctx 取消时剩余条目原样返回
func (e *Enricher) Enrich(ctx context.Context, drafts []model.DraftListing) []model.DraftListing {
	out := make([]model.DraftListing, len(drafts))
	for i, d := range drafts {
		out[i] = d.Clone()
	}
	if e == nil || e.catalog == nil {
		return out
	}

	limit := rate.Inf
	if e.interval > 0 {
		limit = rate.Every(e.interval)
	}
	// burst=1：第一次查询不等待，之后每次间隔 interval
	limiter := rate.NewLimiter(limit, 1)

	for i := range out {
		d := &out[i]
		if !NeedsEnrichment(d) {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			e.log.Debug("富化中止", zap.Error(err))
			break
		}

		title := strings.TrimSpace(d.Title)
		results, err := e.catalog.SearchGames(ctx, title)
		if err != nil {
			e.log.Warn("富化查询失败，跳过", zap.String("title", title), zap.Error(err))
			continue
		}
		if match := PickMatch(results, title); match != nil {
			applyMatch(d, match)
		}
	}
	return out
}

// PickMatch 优先标题完全一致（忽略大小写），否则取第一条
func PickMatch(results []model.GameMatch, title string) *model.GameMatch {
	if len(results) == 0 {
		return nil
	}
	for i := range results {
		if strings.EqualFold(strings.TrimSpace(results[i].Title), strings.TrimSpace(title)) {
			return &results[i]
		}
	}
	return &results[0]
}

// applyMatch 只填空字段；识图占位封面视为缺失，数据库封面放到首位，原图保留在后
func applyMatch(d *model.DraftListing, m *model.GameMatch) {
	if !d.HasCover() && m.Image != "" {
		d.PrependCover(m.Image)
		if d.ExternalID == "" {
			d.ExternalID = m.ID
		}
	}
	if strings.TrimSpace(d.Description) == "" && m.Description != "" {
		d.Description = CatalogDescription(m.Description)
	}
}

// CatalogDescription 去 HTML，截断到 1000 字符并加省略号
func CatalogDescription(raw string) string {
	return utils.Truncate(utils.StripHTML(raw), maxDescriptionRunes) + "..."
}
