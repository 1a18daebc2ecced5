package service

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pasarmalam/internal/model"
	"pasarmalam/pkg/logger"
	"pasarmalam/pkg/utils"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ==================== 配置 ====================

const (
	bggDefaultBaseURL = "https://boardgamegeek.com/xmlapi2"
	bggMaxResults     = 5
	bggMinQueryLen    = 3
)

// BGGConfig BoardGameGeek XML API2 配置
type BGGConfig struct {
	BaseURL string
	Token   string // BGG 新版 API 需要 Bearer Token，可为空
	Timeout time.Duration
}

// ==================== XML 结构 ====================

type bggValue struct {
	Value string `xml:"value,attr"`
}

type bggName struct {
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}

type bggItem struct {
	ID            string    `xml:"id,attr"`
	Names         []bggName `xml:"name"`
	YearPublished bggValue  `xml:"yearpublished"`
	Image         string    `xml:"image"`
	Thumbnail     string    `xml:"thumbnail"`
	Description   string    `xml:"description"`
}

type bggItems struct {
	Items []bggItem `xml:"item"`
}

// primaryName 优先 primary，否则第一个名字
func (it bggItem) primaryName() string {
	for _, n := range it.Names {
		if n.Type == "primary" {
			return n.Value
		}
	}
	if len(it.Names) > 0 {
		return it.Names[0].Value
	}
	return ""
}

// ==================== 服务 ====================

// BGGService 直连 BoardGameGeek 的桌游数据库
type BGGService struct {
	http *resty.Client
	log  *zap.Logger
}

// NewBGGService 创建 BGG 客户端
func NewBGGService(cfg BGGConfig, log *zap.Logger) *BGGService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = bggDefaultBaseURL
	}
	client := utils.NewRestClient(utils.ClientOptions{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Timeout:    cfg.Timeout,
		RetryCount: 1,
	})
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &BGGService{http: client, log: logger.OrNop(log)}
}

// Provider 数据源名称
func (s *BGGService) Provider() string { return "bgg" }

// SearchGames 搜索桌游，最多 5 条，并补充封面和简介
// 查询词不足 3 个字符或 BGG 仍在处理（202）时返回空列表
func (s *BGGService) SearchGames(ctx context.Context, query string) ([]model.GameMatch, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < bggMinQueryLen {
		return []model.GameMatch{}, nil
	}

	// 1. 搜索
	found, accepted, err := s.fetch(ctx, "/search", map[string]string{
		"query": query,
		"type":  "boardgame",
	})
	if err != nil {
		return nil, fmt.Errorf("bgg search: %w", err)
	}
	if accepted || len(found.Items) == 0 {
		return []model.GameMatch{}, nil
	}

	items := found.Items
	if len(items) > bggMaxResults {
		items = items[:bggMaxResults]
	}

	results := make([]model.GameMatch, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		results = append(results, model.GameMatch{
			ID:    it.ID,
			Title: it.primaryName(),
			Year:  it.YearPublished.Value,
		})
		ids = append(ids, it.ID)
	}

	// 2. 详情（封面、简介），失败时仍返回基本结果
	detail, accepted, err := s.fetch(ctx, "/thing", map[string]string{"id": strings.Join(ids, ",")})
	if err != nil || accepted {
		s.log.Warn("BGG 详情获取失败，仅返回搜索结果",
			zap.String("query", query),
			zap.Bool("accepted", accepted),
			zap.Error(err),
		)
		return results, nil
	}

	byID := make(map[string]bggItem, len(detail.Items))
	for _, it := range detail.Items {
		byID[it.ID] = it
	}
	for i := range results {
		if it, ok := byID[results[i].ID]; ok {
			results[i].Image = strings.TrimSpace(it.Image)
			results[i].Thumbnail = strings.TrimSpace(it.Thumbnail)
			results[i].Description = it.Description
		}
	}

	return results, nil
}

// fetch 请求并解析 XML，accepted=true 表示 BGG 返回 202
func (s *BGGService) fetch(ctx context.Context, path string, params map[string]string) (*bggItems, bool, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetHeader("Accept", "application/xml").
		Get(path)
	if err != nil {
		return nil, false, err
	}
	if resp.StatusCode() == http.StatusAccepted {
		return nil, true, nil
	}
	if !resp.IsSuccess() {
		return nil, false, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	var out bggItems
	if err := xml.Unmarshal(resp.Body(), &out); err != nil {
		return nil, false, fmt.Errorf("decode xml: %w", err)
	}
	return &out, false, nil
}
