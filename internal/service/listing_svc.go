package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pasarmalam/internal/model"
	"pasarmalam/pkg/client"
	"pasarmalam/pkg/logger"

	"go.uber.org/zap"
)

// ListingBackend 挂单相关的后端接口
type ListingBackend interface {
	ListListings(ctx context.Context, filter client.ListFilter) ([]model.Listing, error)
	UpdateStatus(ctx context.Context, token, id, status string) error
	OpenForTrade(ctx context.Context, token, id string) error
	DeleteListing(ctx context.Context, token, id string) error
}

// FeedAll 市集默认筛选：除拍卖外全部
const FeedAll = "ALL"

// FeedFilter 市集列表筛选条件
type FeedFilter struct {
	Type     string
	Search   string
	ShowSold bool
}

// ListingService 市集列表快照与“我的挂单”操作
type ListingService struct {
	backend ListingBackend
	log     *zap.Logger
	now     func() time.Time

	mu        sync.RWMutex
	feed      []model.Listing
	fetchedAt time.Time
}

func NewListingService(backend ListingBackend, log *zap.Logger) *ListingService {
	return &ListingService{
		backend: backend,
		log:     logger.OrNop(log),
		now:     time.Now,
	}
}

// ==================== 市集快照 ====================

// Refresh 重新拉取市集列表，失败时保留旧快照
func (s *ListingService) Refresh(ctx context.Context) (int, error) {
	listings, err := s.backend.ListListings(ctx, client.ListFilter{})
	if err != nil {
		return 0, fmt.Errorf("refresh feed: %w", err)
	}

	s.mu.Lock()
	s.feed = listings
	s.fetchedAt = s.now()
	s.mu.Unlock()
	return len(listings), nil
}

// Snapshot 当前快照及拉取时间
func (s *ListingService) Snapshot() ([]model.Listing, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Listing{}, s.feed...), s.fetchedAt
}

// Feed 按筛选条件返回市集列表，尚无快照时先拉取一次
func (s *ListingService) Feed(ctx context.Context, filter FeedFilter) ([]model.Listing, time.Time, error) {
	s.mu.RLock()
	empty := s.fetchedAt.IsZero()
	s.mu.RUnlock()

	if empty {
		if _, err := s.Refresh(ctx); err != nil {
			return nil, time.Time{}, err
		}
	}

	listings, at := s.Snapshot()
	return FilterFeed(listings, filter), at, nil
}

// FilterFeed 市集筛选规则：
// ALL 隐藏拍卖；WTT 同时包含接受交换的出售挂单；默认隐藏已售
func FilterFeed(listings []model.Listing, filter FeedFilter) []model.Listing {
	typ := strings.ToUpper(strings.TrimSpace(filter.Type))
	if typ == "" {
		typ = FeedAll
	}
	term := strings.ToLower(strings.TrimSpace(filter.Search))

	out := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		if !filter.ShowSold && l.Status == model.ListingStatusSold {
			continue
		}
		if !matchesType(l, typ) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(l.Title), term) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func matchesType(l model.Listing, typ string) bool {
	switch typ {
	case FeedAll:
		return l.Type != model.ListingTypeAuction
	case string(model.ListingTypeTrade):
		return l.Type == model.ListingTypeTrade || (l.Type == model.ListingTypeSell && l.OpenForTrade)
	default:
		return string(l.Type) == typ
	}
}

// ==================== 我的挂单 ====================

// Mine 当前用户的挂单及各类型计数
func (s *ListingService) Mine(ctx context.Context, sellerID, typ string) ([]model.Listing, map[string]int, error) {
	listings, err := s.backend.ListListings(ctx, client.ListFilter{SellerID: sellerID})
	if err != nil {
		return nil, nil, fmt.Errorf("list my listings: %w", err)
	}

	counts := map[string]int{
		string(model.ListingTypeSell):    0,
		string(model.ListingTypeBuy):     0,
		string(model.ListingTypeTrade):   0,
		string(model.ListingTypeAuction): 0,
	}
	for _, l := range listings {
		for _, t := range []model.ListingType{model.ListingTypeSell, model.ListingTypeBuy, model.ListingTypeTrade, model.ListingTypeAuction} {
			if matchesType(l, string(t)) {
				counts[string(t)]++
			}
		}
	}

	typ = strings.ToUpper(strings.TrimSpace(typ))
	if typ != "" && typ != FeedAll {
		filtered := make([]model.Listing, 0, len(listings))
		for _, l := range listings {
			if matchesType(l, typ) {
				filtered = append(filtered, l)
			}
		}
		listings = filtered
	}
	return listings, counts, nil
}

// FindMine 查找当前用户的某条挂单
func (s *ListingService) FindMine(ctx context.Context, sellerID, id string) (*model.Listing, error) {
	listings, err := s.backend.ListListings(ctx, client.ListFilter{SellerID: sellerID})
	if err != nil {
		return nil, fmt.Errorf("list my listings: %w", err)
	}
	for i := range listings {
		if listings[i].ID == id {
			if listings[i].SellerID != "" && listings[i].SellerID != sellerID {
				return nil, ErrListingForbidden
			}
			return &listings[i], nil
		}
	}
	return nil, ErrListingNotFound
}

// SetStatus 设置挂单状态，status 为空时在 active / sold 间切换
func (s *ListingService) SetStatus(ctx context.Context, sellerID, token, id, status string) (string, error) {
	l, err := s.FindMine(ctx, sellerID, id)
	if err != nil {
		return "", err
	}

	switch status {
	case "":
		status = model.ListingStatusSold
		if l.Status == model.ListingStatusSold {
			status = model.ListingStatusActive
		}
	case model.ListingStatusActive, model.ListingStatusSold:
	default:
		return "", fmt.Errorf("unknown status %q", status)
	}

	if err := s.backend.UpdateStatus(ctx, token, id, status); err != nil {
		return "", fmt.Errorf("update status: %w", err)
	}
	s.patchSnapshot(id, func(l *model.Listing) { l.Status = status })
	s.log.Info("挂单状态更新", zap.String("listing_id", id), zap.String("status", status))
	return status, nil
}

// OpenForTrade 出售挂单标记为接受交换
func (s *ListingService) OpenForTrade(ctx context.Context, sellerID, token, id string) error {
	l, err := s.FindMine(ctx, sellerID, id)
	if err != nil {
		return err
	}
	if l.Type != model.ListingTypeSell {
		return ErrNotForSale
	}
	if err := s.backend.OpenForTrade(ctx, token, id); err != nil {
		return fmt.Errorf("open for trade: %w", err)
	}
	s.patchSnapshot(id, func(l *model.Listing) { l.OpenForTrade = true })
	return nil
}

// Delete 删除挂单
func (s *ListingService) Delete(ctx context.Context, sellerID, token, id string) error {
	if _, err := s.FindMine(ctx, sellerID, id); err != nil {
		return err
	}
	if err := s.backend.DeleteListing(ctx, token, id); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}

	s.mu.Lock()
	for i := range s.feed {
		if s.feed[i].ID == id {
			s.feed = append(s.feed[:i:i], s.feed[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.log.Info("删除挂单", zap.String("listing_id", id), zap.String("user_id", sellerID))
	return nil
}

// patchSnapshot 乐观更新快照，下一轮轮询会覆盖
func (s *ListingService) patchSnapshot(id string, fn func(l *model.Listing)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.feed {
		if s.feed[i].ID == id {
			fn(&s.feed[i])
			return
		}
	}
}

// ==================== 错误定义 ====================

var (
	ErrListingNotFound  = errors.New("listing not found")
	ErrListingForbidden = errors.New("listing belongs to another user")
	ErrNotForSale       = errors.New("only sell listings can be opened for trade")
)
