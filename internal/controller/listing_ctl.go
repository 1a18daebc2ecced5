package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pasarmalam/internal/api/dto"
	"pasarmalam/internal/middleware"
	"pasarmalam/internal/model"
	"pasarmalam/internal/service"

	"github.com/gin-gonic/gin"
)

// ListingUseCase 市集列表与我的挂单
type ListingUseCase interface {
	Feed(ctx context.Context, filter service.FeedFilter) ([]model.Listing, time.Time, error)
	Mine(ctx context.Context, sellerID, typ string) ([]model.Listing, map[string]int, error)
	SetStatus(ctx context.Context, sellerID, token, id, status string) (string, error)
	OpenForTrade(ctx context.Context, sellerID, token, id string) error
	Delete(ctx context.Context, sellerID, token, id string) error
}

// ==================== 控制器 ====================

type ListingController struct {
	listingService ListingUseCase
}

func NewListingController(s ListingUseCase) *ListingController {
	return &ListingController{listingService: s}
}

// ==================== API 方法 ====================

// Feed 市集列表
// @Summary 市集列表（ALL 不含拍卖，WTT 含接受交换的出售）
// @Tags Listing
// @Param type query string false "ALL | WTS | WTB | WTT | WTL"
// @Param q query string false "标题关键字"
// @Param show_sold query bool false "显示已售"
// @Success 200 {object} dto.FeedResponse
// @Router /api/listings [get]
func (ctrl *ListingController) Feed(c *gin.Context) {
	var q dto.FeedQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}

	listings, fetchedAt, err := ctrl.listingService.Feed(c.Request.Context(), service.FeedFilter{
		Type:     q.Type,
		Search:   q.Search,
		ShowSold: q.ShowSold,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"code": 502, "message": "获取列表失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": dto.FeedResponse{
			Listings:  listings,
			Total:     len(listings),
			FetchedAt: fetchedAt,
		},
	})
}

// Mine 我的挂单
// @Summary 我的挂单及各类型计数
// @Tags Listing
// @Param type query string false "类型筛选"
// @Success 200 {object} dto.MyListingsResponse
// @Router /api/listings/mine [get]
func (ctrl *ListingController) Mine(c *gin.Context) {
	var q dto.MyListingsQuery
	_ = c.ShouldBindQuery(&q)

	listings, counts, err := ctrl.listingService.Mine(c.Request.Context(), middleware.GetUserID(c), q.Type)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"code": 502, "message": "获取我的挂单失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    dto.MyListingsResponse{Listings: listings, Counts: counts},
	})
}

// SetStatus 标记已售 / 重新上架
// @Summary 设置挂单状态，status 为空时切换
// @Tags Listing
// @Param id path string true "挂单ID"
// @Param body body dto.UpdateStatusRequest false "状态"
// @Success 200 {object} dto.UpdateStatusResponse
// @Router /api/listings/{id}/status [post]
func (ctrl *ListingController) SetStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
			return
		}
	}

	id := c.Param("id")
	claims := middleware.GetUserClaims(c)
	status, err := ctrl.listingService.SetStatus(c.Request.Context(), claims.UserID, claims.BackendToken, id, req.Status)
	if err != nil {
		listingError(c, err, "Failed to update status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    dto.UpdateStatusResponse{ID: id, Status: status},
	})
}

// OpenForTrade 出售挂单接受交换
// @Summary 标记接受交换
// @Tags Listing
// @Param id path string true "挂单ID"
// @Router /api/listings/{id}/trade [post]
func (ctrl *ListingController) OpenForTrade(c *gin.Context) {
	claims := middleware.GetUserClaims(c)
	if err := ctrl.listingService.OpenForTrade(c.Request.Context(), claims.UserID, claims.BackendToken, c.Param("id")); err != nil {
		listingError(c, err, "Failed to update")
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "Marked as Open for Trade"})
}

// Delete 删除挂单
// @Summary 删除挂单
// @Tags Listing
// @Param id path string true "挂单ID"
// @Router /api/listings/{id} [delete]
func (ctrl *ListingController) Delete(c *gin.Context) {
	claims := middleware.GetUserClaims(c)
	if err := ctrl.listingService.Delete(c.Request.Context(), claims.UserID, claims.BackendToken, c.Param("id")); err != nil {
		listingError(c, err, "Failed to delete listing")
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "Listing deleted."})
}

func listingError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrListingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "message": err.Error()})
	case errors.Is(err, service.ErrListingForbidden):
		c.JSON(http.StatusForbidden, gin.H{"code": 403, "message": err.Error()})
	case errors.Is(err, service.ErrNotForSale):
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"code": 502, "message": fallback, "detail": err.Error()})
	}
}
