package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"pasarmalam/internal/api/dto"
	"pasarmalam/internal/middleware"
	"pasarmalam/internal/model"
	"pasarmalam/internal/service"
	"pasarmalam/internal/wizard"
	"pasarmalam/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ListingFinder 按 ID 查找当前用户的挂单（编辑已有挂单时使用）
type ListingFinder interface {
	FindMine(ctx context.Context, sellerID, id string) (*model.Listing, error)
}

// FeedRefresher 提交成功后刷新市集列表
type FeedRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

// ==================== 控制器 ====================

// WizardController “添加桌游”向导，一个会话对应一次打开的弹窗
type WizardController struct {
	manager  *wizard.Manager
	listings ListingFinder
	feed     FeedRefresher
	log      *zap.Logger
}

func NewWizardController(manager *wizard.Manager, listings ListingFinder, feed FeedRefresher, log *zap.Logger) *WizardController {
	return &WizardController{
		manager:  manager,
		listings: listings,
		feed:     feed,
		log:      logger.OrNop(log),
	}
}

// ==================== 响应辅助 ====================

func (ctrl *WizardController) ok(c *gin.Context, w *wizard.Workflow) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    w.Snapshot(),
	})
}

// fail 把向导错误映射为 HTTP 状态，附带最新快照
func (ctrl *WizardController) fail(c *gin.Context, w *wizard.Workflow, err error) {
	status := wizardStatus(err)
	body := gin.H{"code": status, "message": err.Error()}

	var ve *wizard.ValidationError
	if errors.As(err, &ve) {
		body["field"] = ve.Field
	}

	if w != nil {
		snap := w.Snapshot()
		userFacing := status == http.StatusBadGateway ||
			errors.Is(err, wizard.ErrNothingDetected) ||
			errors.Is(err, wizard.ErrNoMatch)
		if userFacing && snap.LastError != "" {
			body["message"] = snap.LastError
		}
		body["data"] = snap
	}

	if status >= http.StatusInternalServerError {
		ctrl.log.Warn("向导操作失败", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, body)
}

func wizardStatus(err error) int {
	switch {
	case wizard.IsValidation(err),
		errors.Is(err, wizard.ErrQueryTooShort),
		errors.Is(err, wizard.ErrInvalidIndex),
		errors.Is(err, wizard.ErrAuctionDisabled),
		errors.Is(err, wizard.ErrEmptyStore):
		return http.StatusBadRequest
	case errors.Is(err, wizard.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, wizard.ErrNotFound), errors.Is(err, wizard.ErrNoMatch):
		return http.StatusNotFound
	case errors.Is(err, wizard.ErrInvalidState),
		errors.Is(err, wizard.ErrBusy),
		errors.Is(err, wizard.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, wizard.ErrClosed):
		return http.StatusGone
	case errors.Is(err, wizard.ErrNothingDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusBadGateway
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    400,
		"message": "参数错误: " + err.Error(),
	})
}

// session 取出当前用户的会话
func (ctrl *WizardController) session(c *gin.Context) (*wizard.Workflow, bool) {
	w, err := ctrl.manager.Get(c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		ctrl.fail(c, nil, err)
		return nil, false
	}
	return w, true
}

func indexParam(c *gin.Context, name string) (int, bool) {
	i, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "无效的下标"})
		return 0, false
	}
	return i, true
}

func actorOf(c *gin.Context) wizard.Actor {
	a := wizard.Actor{
		UserID:      middleware.GetUserID(c),
		DisplayName: middleware.GetDisplayName(c),
	}
	if claims := middleware.GetUserClaims(c); claims != nil {
		a.Token = claims.BackendToken
	}
	return a
}

// finish 提交成功：移除会话并刷新市集列表
func (ctrl *WizardController) finish(c *gin.Context, w *wizard.Workflow, res *wizard.CommitResult) {
	ctrl.manager.Remove(w.ID())

	if ctrl.feed != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 10*time.Second)
		if _, err := ctrl.feed.Refresh(ctx); err != nil {
			ctrl.log.Warn("提交后刷新市集列表失败", zap.Error(err))
		}
		cancel()
	}

	ctrl.log.Info("挂单已提交",
		zap.String("session", w.ID()),
		zap.String("user_id", w.Owner()),
		zap.String("mode", string(res.Mode)),
		zap.Int("count", res.Count),
	)
	c.JSON(http.StatusCreated, gin.H{
		"code":    0,
		"message": "success",
		"data":    res,
	})
}

// ==================== 会话 ====================

// Open 打开向导
// @Summary 打开向导，带 listingId 时编辑已有挂单
// @Tags Wizard
// @Param body body dto.OpenWizardRequest false "编辑已有挂单"
// @Success 201 {object} wizard.Snapshot
// @Router /api/wizard [post]
func (ctrl *WizardController) Open(c *gin.Context) {
	var req dto.OpenWizardRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	actor := actorOf(c)
	if req.ListingID == "" {
		w := ctrl.manager.Open(actor)
		c.JSON(http.StatusCreated, gin.H{"code": 0, "message": "success", "data": w.Snapshot()})
		return
	}

	listing, err := ctrl.listings.FindMine(c.Request.Context(), actor.UserID, req.ListingID)
	if err != nil {
		listingError(c, err, "Failed to load listing")
		return
	}
	w, err := ctrl.manager.OpenExisting(actor, *listing)
	if err != nil {
		ctrl.fail(c, nil, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": 0, "message": "success", "data": w.Snapshot()})
}

// Get 当前快照
// @Summary 向导快照
// @Tags Wizard
// @Param id path string true "会话ID"
// @Success 200 {object} wizard.Snapshot
// @Router /api/wizard/{id} [get]
func (ctrl *WizardController) Get(c *gin.Context) {
	if w, ok := ctrl.session(c); ok {
		ctrl.ok(c, w)
	}
}

// Close 关闭弹窗，丢弃全部草稿
// @Router /api/wizard/{id} [delete]
func (ctrl *WizardController) Close(c *gin.Context) {
	if err := ctrl.manager.Close(c.Param("id"), middleware.GetUserID(c)); err != nil {
		ctrl.fail(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "closed"})
}

// ==================== 步骤 ====================

// SelectType 选择挂单类型
// @Router /api/wizard/{id}/type [post]
func (ctrl *WizardController) SelectType(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	var req dto.SelectTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := w.SelectType(req.Type); err != nil {
		ctrl.fail(c, w, err)
		return
	}
	ctrl.ok(c, w)
}

// SelectMethod 选择获取方式（manual / lookup / scan / parse）
// @Router /api/wizard/{id}/method [post]
func (ctrl *WizardController) SelectMethod(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	var req dto.SelectMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := w.SelectMethod(wizard.Method(req.Method)); err != nil {
		ctrl.fail(c, w, err)
		return
	}
	ctrl.ok(c, w)
}

// Back 返回上一步
// @Router /api/wizard/{id}/back [post]
func (ctrl *WizardController) Back(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	if err := w.Back(); err != nil {
		ctrl.fail(c, w, err)
		return
	}
	if w.Closed() {
		ctrl.manager.Remove(w.ID())
	}
	ctrl.ok(c, w)
}

// ==================== 获取方式 ====================

// Search 搜索桌游数据库（防抖）
// @Param q query string true "至少 3 个字符"
// @Success 200 {array} model.GameMatch
// @Router /api/wizard/{id}/search [get]
func (ctrl *WizardController) Search(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	var q dto.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	results, err := w.Search(c.Request.Context(), q.Q)
	if err != nil {
		ctrl.fail(c, w, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": results})
}

// Select 选中搜索结果，进入表单
// @Param body body dto.SelectResultRequest true "index 或 id"
// @Router /api/wizard/{id}/select [post]
func (ctrl *WizardController) Select(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	var req dto.SelectResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var err error
	switch {
	case req.ID != "":
		err = w.SelectResultByID(req.ID)
	case req.Index != nil:
		results := w.Snapshot().SearchResults
		if *req.Index < 0 || *req.Index >= len(results) {
			err = wizard.ErrInvalidIndex
		} else {
			err = w.SelectResult(results[*req.Index])
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "index 或 id 必填其一"})
		return
	}
	if err != nil {
		ctrl.fail(c, w, err)
		return
	}
	ctrl.ok(c, w)
}

// Scan 拍照识别
// @Param body body dto.ScanRequest true "图片（data URL 或 base64）"
// @Router /api/wizard/{id}/scan [post]
func (ctrl *WizardController) Scan(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	var req dto.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := service.WithCallMeta(c.Request.Context(), w.Owner(), w.ID())
	if err := w.Scan(ctx, req.Image); err != nil {
		ctrl.fail(c, w, err)
		return
	}
	ctrl.ok(c, w)
}

// Parse 解析粘贴的文本
// @Param body body dto.ParseRequest true "文本"
// @Router /api/wizard/{id}/parse [post]
func (ctrl *WizardController) Parse(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	var req dto.ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := service.WithCallMeta(c.Request.Context(), w.Owner(), w.ID())
	if err := w.Parse(ctx, req.Text); err != nil {
		ctrl.fail(c, w, err)
		return
	}
	ctrl.ok(c, w)
}

// ==================== 表单 ====================

// UpdateForm 保存表单（不提交）
// @Param body body model.DraftListing true "表单"
// @Router /api/wizard/{id}/form [put]
func (ctrl *WizardController) UpdateForm(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	var d model.DraftListing
	if err := c.ShouldBindJSON(&d); err != nil {
		badRequest(c, err)
		return
	}
	if err := w.UpdateForm(d); err != nil {
		ctrl.fail(c, w, err)
		return
	}
	ctrl.ok(c, w)
}

// SubmitForm 提交表单；编辑已有挂单时直接保存到后端
// @Param body body model.DraftListing false "表单，为空时提交已保存的表单"
// @Router /api/wizard/{id}/form [post]
func (ctrl *WizardController) SubmitForm(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	var d *model.DraftListing
	if c.Request.ContentLength > 0 {
		d = &model.DraftListing{}
		if err := c.ShouldBindJSON(d); err != nil {
			badRequest(c, err)
			return
		}
	}

	res, err := w.SubmitForm(c.Request.Context(), d)
	if err != nil {
		ctrl.fail(c, w, err)
		return
	}
	if res != nil {
		ctrl.finish(c, w, res)
		return
	}
	ctrl.ok(c, w)
}

// AddFormImages 表单追加图片
// @Param body body dto.FormImagesRequest true "图片"
// @Router /api/wizard/{id}/form/images [post]
func (ctrl *WizardController) AddFormImages(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	var req dto.FormImagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := w.AddFormImages(req.Images...); err != nil {
		ctrl.fail(c, w, err)
		return
	}
	ctrl.ok(c, w)
}

// RemoveFormImage 删除表单图片
// @Router /api/wizard/{id}/form/images/{index} [delete]
func (ctrl *WizardController) RemoveFormImage(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	i, ok := indexParam(c, "index")
	if !ok {
		return
	}
	if err := w.RemoveFormImage(i); err != nil {
		ctrl.fail(c, w, err)
		return
	}
	ctrl.ok(c, w)
}

// SetFormCover 设为封面
// @Param body body dto.IndexRequest true "图片下标"
// @Router /api/wizard/{id}/form/cover [post]
func (ctrl *WizardController) SetFormCover(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	var req dto.IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := w.SetFormCover(*req.Index); err != nil {
		ctrl.fail(c, w, err)
		return
	}
	ctrl.ok(c, w)
}

// FetchCover 从桌游数据库取封面
// @Router /api/wizard/{id}/form/fetch-cover [post]
func (ctrl *WizardController) FetchCover(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	if err := w.FetchCover(c.Request.Context()); err != nil {
		ctrl.fail(c, w, err)
		return
	}
	ctrl.ok(c, w)
}

// GenerateDescription 从桌游数据库生成简介
// @Router /api/wizard/{id}/form/description [post]
func (ctrl *WizardController) GenerateDescription(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	if err := w.GenerateDescription(c.Request.Context()); err != nil {
		ctrl.fail(c, w, err)
		return
	}
	ctrl.ok(c, w)
}

// ==================== 审核 ====================

// AddMore 审核页继续添加
// @Router /api/wizard/{id}/drafts [post]
func (ctrl *WizardController) AddMore(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	if err := w.AddMore(); err != nil {
		ctrl.fail(c, w, err)
		return
	}
	ctrl.ok(c, w)
}

// EditDraft 编辑第 index 条草稿
// @Router /api/wizard/{id}/drafts/{index}/edit [post]
func (ctrl *WizardController) EditDraft(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	i, ok := indexParam(c, "index")
	if !ok {
		return
	}
	if err := w.EditDraft(i); err != nil {
		ctrl.fail(c, w, err)
		return
	}
	ctrl.ok(c, w)
}

// DeleteDraft 删除第 index 条草稿
// @Router /api/wizard/{id}/drafts/{index} [delete]
func (ctrl *WizardController) DeleteDraft(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	i, ok := indexParam(c, "index")
	if !ok {
		return
	}
	if err := w.DeleteDraft(i); err != nil {
		ctrl.fail(c, w, err)
		return
	}
	ctrl.ok(c, w)
}

// SetDraftPrice 行内改价，非数字输入被拒绝并保留原值
// @Param body body dto.DraftPriceRequest true "价格"
// @Success 200 {object} dto.DraftPriceResponse
// @Router /api/wizard/{id}/drafts/{index}/price [patch]
func (ctrl *WizardController) SetDraftPrice(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	i, ok := indexParam(c, "index")
	if !ok {
		return
	}
	var req dto.DraftPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	price, accepted, err := w.SetDraftPrice(i, req.Price)
	if err != nil {
		ctrl.fail(c, w, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    dto.DraftPriceResponse{Accepted: accepted, Price: price},
	})
}

// SetDraftCover 审核页设置封面
// @Param body body dto.IndexRequest true "图片下标"
// @Router /api/wizard/{id}/drafts/{index}/cover [post]
func (ctrl *WizardController) SetDraftCover(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	i, ok := indexParam(c, "index")
	if !ok {
		return
	}
	var req dto.IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := w.SetDraftCover(i, *req.Index); err != nil {
		ctrl.fail(c, w, err)
		return
	}
	ctrl.ok(c, w)
}

// AutoFill 批量补全封面和简介
// @Router /api/wizard/{id}/autofill [post]
func (ctrl *WizardController) AutoFill(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	if err := w.AutoFill(c.Request.Context()); err != nil {
		ctrl.fail(c, w, err)
		return
	}
	ctrl.ok(c, w)
}

// Commit 一次提交全部草稿
// @Success 201 {object} wizard.CommitResult
// @Router /api/wizard/{id}/commit [post]
func (ctrl *WizardController) Commit(c *gin.Context) {
	w, ok := ctrl.session(c)
	if !ok {
		return
	}
	res, err := w.Commit(c.Request.Context())
	if err != nil {
		ctrl.fail(c, w, err)
		return
	}
	ctrl.finish(c, w, res)
}
