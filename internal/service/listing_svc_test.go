package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pasarmalam/internal/model"
	"pasarmalam/pkg/client"
)

type mockListingBackend struct {
	listings []model.Listing
	listErr  error
	filters  []client.ListFilter
	statuses map[string]string
	traded   []string
	deleted  []string
}

func (m *mockListingBackend) ListListings(_ context.Context, f client.ListFilter) ([]model.Listing, error) {
	m.filters = append(m.filters, f)
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []model.Listing{}
	for _, l := range m.listings {
		if f.SellerID != "" && l.SellerID != f.SellerID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (m *mockListingBackend) UpdateStatus(_ context.Context, _, id, status string) error {
	if m.statuses == nil {
		m.statuses = map[string]string{}
	}
	m.statuses[id] = status
	return nil
}

func (m *mockListingBackend) OpenForTrade(_ context.Context, _, id string) error {
	m.traded = append(m.traded, id)
	return nil
}

func (m *mockListingBackend) DeleteListing(_ context.Context, _, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func sampleListings() []model.Listing {
	return []model.Listing{
		{ID: "1", Type: model.ListingTypeSell, Title: "Catan", SellerID: "u-1", Status: model.ListingStatusActive},
		{ID: "2", Type: model.ListingTypeSell, Title: "Azul", SellerID: "u-2", Status: model.ListingStatusActive, OpenForTrade: true},
		{ID: "3", Type: model.ListingTypeTrade, Title: "Root", SellerID: "u-2", Status: model.ListingStatusActive},
		{ID: "4", Type: model.ListingTypeBuy, Title: "Brass: Birmingham", SellerID: "u-1", Status: model.ListingStatusActive},
		{ID: "5", Type: model.ListingTypeAuction, Title: "Gloomhaven", SellerID: "u-3", Status: model.ListingStatusActive},
		{ID: "6", Type: model.ListingTypeSell, Title: "Catan Seafarers", SellerID: "u-3", Status: model.ListingStatusSold},
	}
}

func ids(listings []model.Listing) []string {
	out := make([]string, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.ID)
	}
	return out
}

func TestFilterFeed(t *testing.T) {
	tests := []struct {
		name   string
		filter FeedFilter
		want   []string
	}{
		{name: "默认隐藏拍卖和已售", filter: FeedFilter{}, want: []string{"1", "2", "3", "4"}},
		{name: "ALL 显示已售", filter: FeedFilter{Type: "ALL", ShowSold: true}, want: []string{"1", "2", "3", "4", "6"}},
		{name: "WTT 包含接受交换的出售", filter: FeedFilter{Type: "wtt"}, want: []string{"2", "3"}},
		{name: "WTS", filter: FeedFilter{Type: "WTS"}, want: []string{"1", "2"}},
		{name: "WTL 单独查看拍卖", filter: FeedFilter{Type: "WTL"}, want: []string{"5"}},
		{name: "标题搜索", filter: FeedFilter{Search: "CATAN", ShowSold: true}, want: []string{"1", "6"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(FilterFeed(sampleListings(), tt.filter)))
		})
	}
}

func TestListingService_FeedAndRefresh(t *testing.T) {
	backend := &mockListingBackend{listings: sampleListings()}
	svc := NewListingService(backend, nil)
	fixed := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	ctx := context.Background()

	// 首次读取时拉取
	feed, at, err := svc.Feed(ctx, FeedFilter{})
	require.NoError(t, err)
	assert.Len(t, feed, 4)
	assert.Equal(t, fixed, at)
	require.Len(t, backend.filters, 1)
	assert.Equal(t, client.ListFilter{}, backend.filters[0])

	// 已有快照时不再请求
	_, _, err = svc.Feed(ctx, FeedFilter{Type: "WTB"})
	require.NoError(t, err)
	assert.Len(t, backend.filters, 1)

	// 刷新失败保留旧快照
	backend.listErr = errors.New("timeout")
	_, err = svc.Refresh(ctx)
	assert.Error(t, err)
	snap, _ := svc.Snapshot()
	assert.Len(t, snap, 6)
}

func TestListingService_Mine(t *testing.T) {
	backend := &mockListingBackend{listings: sampleListings()}
	svc := NewListingService(backend, nil)

	mine, counts, err := svc.Mine(context.Background(), "u-2", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, ids(mine))
	assert.Equal(t, 1, counts["WTS"])
	assert.Equal(t, 2, counts["WTT"], "接受交换的出售也计入交换")
	assert.Equal(t, 0, counts["WTB"])

	mine, _, err = svc.Mine(context.Background(), "u-2", "WTS")
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(mine))
}

func TestListingService_SetStatus(t *testing.T) {
	backend := &mockListingBackend{listings: sampleListings()}
	svc := NewListingService(backend, nil)
	ctx := context.Background()
	_, err := svc.Refresh(ctx)
	require.NoError(t, err)

	status, err := svc.SetStatus(ctx, "u-1", "tok", "1", "")
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusSold, status)
	assert.Equal(t, model.ListingStatusSold, backend.statuses["1"])

	snap, _ := svc.Snapshot()
	assert.Equal(t, model.ListingStatusSold, snap[0].Status, "快照乐观更新")

	// 已售挂单切换回 active
	backend.listings[5].SellerID = "u-1"
	status, err = svc.SetStatus(ctx, "u-1", "tok", "6", "")
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusActive, status)

	_, err = svc.SetStatus(ctx, "u-1", "tok", "3", "sold")
	assert.ErrorIs(t, err, ErrListingNotFound, "别人的挂单不在我的列表中")

	_, err = svc.SetStatus(ctx, "u-1", "tok", "1", "archived")
	assert.Error(t, err)
}

func TestListingService_OpenForTradeAndDelete(t *testing.T) {
	backend := &mockListingBackend{listings: sampleListings()}
	svc := NewListingService(backend, nil)
	ctx := context.Background()
	_, err := svc.Refresh(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.OpenForTrade(ctx, "u-1", "tok", "1"))
	assert.Equal(t, []string{"1"}, backend.traded)
	assert.ErrorIs(t, svc.OpenForTrade(ctx, "u-1", "tok", "4"), ErrNotForSale)

	require.NoError(t, svc.Delete(ctx, "u-1", "tok", "4"))
	assert.Equal(t, []string{"4"}, backend.deleted)
	snap, _ := svc.Snapshot()
	assert.NotContains(t, ids(snap), "4")

	assert.ErrorIs(t, svc.Delete(ctx, "u-1", "tok", "5"), ErrListingNotFound)
}
