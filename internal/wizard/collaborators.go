package wizard

import (
	"context"

	"pasarmalam/internal/model"
)

// Catalog 桌游数据库（按标题搜索）
type Catalog interface {
	SearchGames(ctx context.Context, query string) ([]model.GameMatch, error)
}

// ImageRecognizer AI 识图
type ImageRecognizer interface {
	ScanImage(ctx context.Context, image string) ([]model.ParsedItem, error)
}

// TextParser AI 文本解析
type TextParser interface {
	ParseText(ctx context.Context, text string, listingType model.ListingType) ([]model.ParsedItem, error)
}

// ListingSink 挂单提交
type ListingSink interface {
	CreateListings(ctx context.Context, token string, items []model.ListingPayload) ([]model.Listing, error)
	UpdateListing(ctx context.Context, token, id string, item model.ListingPayload) (*model.Listing, error)
}

// Actor 当前操作用户，提交时用于填写 sellerId
type Actor struct {
	UserID      string
	DisplayName string
	Token       string // 后端令牌
}
