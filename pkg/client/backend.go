package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pasarmalam/internal/model"
	"pasarmalam/pkg/utils"

	"github.com/go-resty/resty/v2"
)

// ==================== 错误定义 ====================

// APIError 后端返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
}

// IsStatus 判断是否为指定状态码的后端错误
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// errorBody FastAPI 风格的错误体 {"detail": "..."}
type errorBody struct {
	Detail any `json:"detail"`
}

// ==================== 客户端 ====================

// Config 后端客户端配置
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	Debug      bool
}

// BackendClient 市集后端 REST 客户端
// 挂单、桌游搜索和 AI 识别都通过它访问后端
type BackendClient struct {
	http *resty.Client
}

// NewBackendClient 创建客户端，BaseURL 缺少 /api 时自动补上
func NewBackendClient(cfg Config) *BackendClient {
	return &BackendClient{
		http: utils.NewRestClient(utils.ClientOptions{
			BaseURL:    NormalizeBaseURL(cfg.BaseURL),
			Timeout:    cfg.Timeout,
			RetryCount: cfg.RetryCount,
			Debug:      cfg.Debug,
		}),
	}
}

// NormalizeBaseURL 去掉结尾斜杠并确保以 /api 结尾
func NormalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		base = "http://localhost:8000"
	}
	if !strings.HasSuffix(base, "/api") {
		base += "/api"
	}
	return base
}

func (c *BackendClient) request(ctx context.Context, token string) *resty.Request {
	req := c.http.R().SetContext(ctx).SetHeader("Accept", "application/json")
	if token != "" {
		req.SetAuthToken(token)
	}
	return req
}

// checkResponse 统一处理传输错误和非 2xx 响应
func checkResponse(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsSuccess() {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode()}
	var body errorBody
	if jsonErr := decodeJSON(resp.Body(), &body); jsonErr == nil && body.Detail != nil {
		apiErr.Detail = fmt.Sprint(body.Detail)
	}
	return fmt.Errorf("%s: %w", op, apiErr)
}

// ==================== 认证 ====================

// LoginResponse 登录结果
type LoginResponse struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

// Login 以昵称登录
func (c *BackendClient) Login(ctx context.Context, displayName string) (*LoginResponse, error) {
	var out LoginResponse
	resp, err := c.request(ctx, "").
		SetBody(map[string]string{"displayName": displayName}).
		SetResult(&out).
		Post("/auth/login")
	if err := checkResponse(resp, err, "login"); err != nil {
		return nil, err
	}
	return &out, nil
}

// ==================== 挂单 ====================

// ListFilter 挂单列表过滤条件，空值表示不过滤
type ListFilter struct {
	Type     model.ListingType
	SellerID string
}

// ListListings 获取挂单列表
func (c *BackendClient) ListListings(ctx context.Context, filter ListFilter) ([]model.Listing, error) {
	var out []model.Listing
	req := c.request(ctx, "").SetResult(&out)
	if filter.Type != "" {
		req.SetQueryParam("type", string(filter.Type))
	}
	if filter.SellerID != "" {
		req.SetQueryParam("sellerId", filter.SellerID)
	}

	resp, err := req.Get("/listings")
	if err := checkResponse(resp, err, "list listings"); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Listing{}
	}
	return out, nil
}

// CreateListings 批量创建挂单
func (c *BackendClient) CreateListings(ctx context.Context, token string, items []model.ListingPayload) ([]model.Listing, error) {
	var out []model.Listing
	resp, err := c.request(ctx, token).
		SetBody(items).
		SetResult(&out).
		Post("/listings")
	if err := checkResponse(resp, err, "create listings"); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateListing 更新单个挂单
func (c *BackendClient) UpdateListing(ctx context.Context, token, id string, item model.ListingPayload) (*model.Listing, error) {
	var out model.Listing
	resp, err := c.request(ctx, token).
		SetPathParam("id", id).
		SetBody(item).
		SetResult(&out).
		Put("/listings/{id}")
	if err := checkResponse(resp, err, "update listing"); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus 切换挂单状态（active / sold）
func (c *BackendClient) UpdateStatus(ctx context.Context, token, id, status string) error {
	resp, err := c.request(ctx, token).
		SetPathParam("id", id).
		SetBody(map[string]string{"status": status}).
		Put("/listings/{id}")
	return checkResponse(resp, err, "update listing status")
}

// OpenForTrade 把出售挂单标记为接受交换
func (c *BackendClient) OpenForTrade(ctx context.Context, token, id string) error {
	resp, err := c.request(ctx, token).
		SetPathParam("id", id).
		SetBody(map[string]bool{"openForTrade": true}).
		Put("/listings/{id}")
	return checkResponse(resp, err, "open listing for trade")
}

// DeleteListing 删除挂单
func (c *BackendClient) DeleteListing(ctx context.Context, token, id string) error {
	resp, err := c.request(ctx, token).
		SetPathParam("id", id).
		Delete("/listings/{id}")
	return checkResponse(resp, err, "delete listing")
}

// ==================== 桌游数据库 ====================

// SearchGames 通过后端代理搜索 BGG
func (c *BackendClient) SearchGames(ctx context.Context, query string) ([]model.GameMatch, error) {
	var out []model.GameMatch
	resp, err := c.request(ctx, "").
		SetQueryParam("q", query).
		SetResult(&out).
		Get("/bgg/search")
	if err := checkResponse(resp, err, "search games"); err != nil {
		return nil, err
	}
	// BGG 仍在生成结果时后端返回 202
	if resp.StatusCode() == http.StatusAccepted || out == nil {
		return []model.GameMatch{}, nil
	}
	return out, nil
}

// ==================== AI 识别 ====================

// ScanImage 上传照片识别桌游
func (c *BackendClient) ScanImage(ctx context.Context, image string) ([]model.ParsedItem, error) {
	resp, err := c.request(ctx, "").
		SetBody(map[string]string{"image": image}).
		Post("/ai/scan-image")
	if err := checkResponse(resp, err, "scan image"); err != nil {
		return nil, err
	}
	return decodeItems(resp.Body(), "scan image")
}

// ParseText 解析粘贴的清单文本
func (c *BackendClient) ParseText(ctx context.Context, text string, listingType model.ListingType) ([]model.ParsedItem, error) {
	resp, err := c.request(ctx, "").
		SetBody(map[string]string{"text": text, "type": string(listingType)}).
		Post("/ai/parse-text")
	if err := checkResponse(resp, err, "parse text"); err != nil {
		return nil, err
	}
	return decodeItems(resp.Body(), "parse text")
}

// decodeItems 后端原样转发模型输出，可能是数组也可能是单个对象
func decodeItems(body []byte, op string) ([]model.ParsedItem, error) {
	items, err := model.ParseItemsJSON(string(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

func decodeJSON(data []byte, v any) error {
	if len(data) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(data, v)
}
