package controller

import (
	"context"
	"net/http"
	"testing"
	"time"

	"pasarmalam/internal/middleware"
	"pasarmalam/internal/model"
	"pasarmalam/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockListingService struct {
	lastFilter service.FeedFilter
	lastStatus string
	lastToken  string
	feedFn     func(ctx context.Context, f service.FeedFilter) ([]model.Listing, time.Time, error)
	statusFn   func(id, status string) (string, error)
	deleteFn   func(id string) error
}

func (m *mockListingService) Feed(ctx context.Context, f service.FeedFilter) ([]model.Listing, time.Time, error) {
	m.lastFilter = f
	return m.feedFn(ctx, f)
}

func (m *mockListingService) Mine(_ context.Context, sellerID, _ string) ([]model.Listing, map[string]int, error) {
	return []model.Listing{{ID: "1", SellerID: sellerID}}, map[string]int{"WTS": 1}, nil
}

func (m *mockListingService) SetStatus(_ context.Context, _, token, id, status string) (string, error) {
	m.lastStatus = status
	m.lastToken = token
	return m.statusFn(id, status)
}

func (m *mockListingService) OpenForTrade(_ context.Context, _, _, id string) error {
	if id == "wtb" {
		return service.ErrNotForSale
	}
	return nil
}

func (m *mockListingService) Delete(_ context.Context, _, _, id string) error {
	return m.deleteFn(id)
}

func setupListingRouter(svc ListingUseCase) http.Handler {
	ctrl := NewListingController(svc)
	router := setupRouter()
	router.GET("/api/listings", ctrl.Feed)
	mine := router.Group("/api/listings", middleware.JWTAuth())
	mine.GET("/mine", ctrl.Mine)
	mine.DELETE("/:id", ctrl.Delete)
	mine.POST("/:id/status", ctrl.SetStatus)
	mine.POST("/:id/trade", ctrl.OpenForTrade)
	return router
}

func TestListingController_Feed(t *testing.T) {
	svc := &mockListingService{feedFn: func(context.Context, service.FeedFilter) ([]model.Listing, time.Time, error) {
		return []model.Listing{{ID: "1", Title: "Catan"}}, time.Now(), nil
	}}
	router := setupListingRouter(svc)

	w := performRequest(router, http.MethodGet, "/api/listings?type=WTT&q=cat&show_sold=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.FeedFilter{Type: "WTT", Search: "cat", ShowSold: true}, svc.lastFilter)
	assert.Contains(t, w.Body.String(), `"total":1`)
}

func TestListingController_Mine(t *testing.T) {
	router := setupListingRouter(&mockListingService{})

	w := performRequest(router, http.MethodGet, "/api/listings/mine", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = performAuthed(router, http.MethodGet, "/api/listings/mine", nil, tokenFor(t, "u-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sellerId":"u-1"`)
	assert.Contains(t, w.Body.String(), `"WTS":1`)
}

func TestListingController_SetStatus(t *testing.T) {
	svc := &mockListingService{statusFn: func(id, status string) (string, error) {
		switch id {
		case "missing":
			return "", service.ErrListingNotFound
		case "down":
			return "", assert.AnError
		}
		if status == "" {
			return model.ListingStatusSold, nil
		}
		return status, nil
	}}
	router := setupListingRouter(svc)
	tok := tokenFor(t, "u-1")

	tests := []struct {
		name       string
		id         string
		body       interface{}
		wantStatus int
		wantBody   string
	}{
		{name: "切换状态", id: "1", body: nil, wantStatus: http.StatusOK, wantBody: `"status":"sold"`},
		{name: "指定状态", id: "1", body: map[string]string{"status": "active"}, wantStatus: http.StatusOK, wantBody: `"status":"active"`},
		{name: "非法状态", id: "1", body: map[string]string{"status": "archived"}, wantStatus: http.StatusBadRequest},
		{name: "不存在", id: "missing", body: nil, wantStatus: http.StatusNotFound},
		{name: "后端失败", id: "down", body: nil, wantStatus: http.StatusBadGateway, wantBody: "Failed to update status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performAuthed(router, http.MethodPost, "/api/listings/"+tt.id+"/status", tt.body, tok)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
		})
	}
	assert.Equal(t, "backend-u-1", svc.lastToken, "透传后端令牌")
}

func TestListingController_DeleteAndTrade(t *testing.T) {
	svc := &mockListingService{deleteFn: func(id string) error {
		if id == "other" {
			return service.ErrListingForbidden
		}
		return nil
	}}
	router := setupListingRouter(svc)
	tok := tokenFor(t, "u-1")

	w := performAuthed(router, http.MethodDelete, "/api/listings/1", nil, tok)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performAuthed(router, http.MethodDelete, "/api/listings/other", nil, tok)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = performAuthed(router, http.MethodPost, "/api/listings/1/trade", nil, tok)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performAuthed(router, http.MethodPost, "/api/listings/wtb/trade", nil, tok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
