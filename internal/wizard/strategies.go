package wizard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"pasarmalam/internal/model"
	"pasarmalam/pkg/utils"

	"go.uber.org/zap"
)

// ==================== 公共流程 ====================

// beginAcquire 进入获取方式的异步阶段，返回当前 gen 和挂单类型
func (w *Workflow) beginAcquire(m Method) (uint64, model.ListingType, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(); err != nil {
		return 0, "", err
	}
	if w.state != StateAcquire || w.method != m {
		return 0, "", ErrInvalidState
	}
	w.busy = true
	w.lastError = ""
	return w.gen, w.listingType, nil
}

// release 结束异步阶段；gen 已变化时忙碌标记属于新操作，不动它
func (w *Workflow) release(gen uint64) {
	if w.gen == gen {
		w.busy = false
	}
}

// acquireFailed 协作方失败：草稿不变，只记录用户可见提示
func (w *Workflow) acquireFailed(gen uint64, msg string, err error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.release(gen)
	if cur := w.stillCurrent(gen); cur != nil {
		return cur
	}
	w.lastError = msg
	w.log.Warn("获取草稿失败", zap.String("method", string(w.method)), zap.Error(err))
	return err
}

// finishAcquire 富化后追加到草稿列表并进入审核
func (w *Workflow) finishAcquire(ctx context.Context, gen uint64, drafts []model.DraftListing) error {
	if len(drafts) > 0 {
		drafts = w.enricher.Enrich(ctx, drafts)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.release(gen)
	if err := w.stillCurrent(gen); err != nil {
		return err
	}

	if len(drafts) == 0 {
		if w.store.Len() == 0 {
			w.lastError = msgNothingDetected
			return ErrNothingDetected
		}
		w.transition(StateReview)
		w.lastError = msgNothingDetected
		return nil
	}

	for _, d := range drafts {
		w.store.Append(d)
	}
	w.transition(StateReview)
	return nil
}

// DraftFromParsed AI 结果转为草稿；价格 0 视为未知
func DraftFromParsed(t model.ListingType, it model.ParsedItem) model.DraftListing {
	d := model.NewDraft(t)
	d.Title = strings.TrimSpace(it.Title)
	d.Description = strings.TrimSpace(it.Description)
	if p, ok := it.Price.Float(); ok && p > 0 {
		d.Price = strconv.FormatFloat(math.Round(p), 'f', 0, 64)
	}
	if c, ok := it.Condition.Float(); ok {
		d.Condition = model.NormalizeCondition(c)
	}
	return d
}

// ==================== 识图 ====================

// Scan 上传一张照片识别桌游；每条结果都以这张照片作为占位封面
func (w *Workflow) Scan(ctx context.Context, image string) error {
	if _, _, err := utils.DecodeImagePayload(image); err != nil {
		return w.rejectInput(invalid("image", "Please upload an image file."))
	}

	gen, t, err := w.beginAcquire(MethodScan)
	if err != nil {
		return err
	}
	if w.deps.Recognizer == nil {
		return w.acquireFailed(gen, msgScanFailed, errors.New("image recognizer not configured"))
	}

	items, err := w.deps.Recognizer.ScanImage(ctx, image)
	if err != nil {
		return w.acquireFailed(gen, msgScanFailed, fmt.Errorf("scan image: %w", err))
	}

	drafts := make([]model.DraftListing, 0, len(items))
	for _, it := range items {
		d := DraftFromParsed(t, it)
		if d.Title == "" {
			continue
		}
		d.Images = []string{image}
		d.Image = image
		d.PlaceholderCover = true
		drafts = append(drafts, d)
	}
	return w.finishAcquire(ctx, gen, drafts)
}

// ==================== 文本解析 ====================

// QuickList 求购清单：每个非空行一条，只有标题
func QuickList(text string) []model.DraftListing {
	var drafts []model.DraftListing
	for _, line := range strings.Split(text, "\n") {
		title := strings.TrimSpace(line)
		if title == "" {
			continue
		}
		d := model.NewDraft(model.ListingTypeBuy)
		d.Title = title
		drafts = append(drafts, d)
	}
	return drafts
}

// Parse 粘贴文本：求购按行拆分，其他类型交给 AI 解析
func (w *Workflow) Parse(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return w.rejectInput(invalid("text", "Paste your list first."))
	}

	gen, t, err := w.beginAcquire(MethodParse)
	if err != nil {
		return err
	}

	var drafts []model.DraftListing
	if t == model.ListingTypeBuy {
		drafts = QuickList(text)
	} else {
		if w.deps.Parser == nil {
			return w.acquireFailed(gen, msgParseFailed, errors.New("text parser not configured"))
		}
		items, err := w.deps.Parser.ParseText(ctx, text, t)
		if err != nil {
			return w.acquireFailed(gen, msgParseFailed, fmt.Errorf("parse text: %w", err))
		}
		for _, it := range items {
			if d := DraftFromParsed(t, it); d.Title != "" {
				drafts = append(drafts, d)
			}
		}
	}
	return w.finishAcquire(ctx, gen, drafts)
}

// rejectInput 输入校验失败，记录提示
func (w *Workflow) rejectInput(err error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.lastError = err.Error()
	return err
}

// ==================== 数据库选择 ====================

// DraftFromMatch 选中的搜索结果转为草稿，成色默认 8
func DraftFromMatch(t model.ListingType, m model.GameMatch) model.DraftListing {
	d := model.NewDraft(t)
	d.Title = strings.TrimSpace(m.Title)
	d.PrependCover(m.Image)
	if m.Description != "" {
		d.Description = CatalogDescription(m.Description)
	} else {
		d.Description = fmt.Sprintf("BGG ID: %s - %s", m.ID, m.Year)
	}
	d.ExternalID = m.ID
	d.Condition = model.ConditionDefault
	return d
}

// SelectResult 选中一条搜索结果，进入表单补充价格和成色
func (w *Workflow) SelectResult(m model.GameMatch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(); err != nil {
		return err
	}
	if w.state != StateAcquire || w.method != MethodLookup {
		return ErrInvalidState
	}
	if strings.TrimSpace(m.Title) == "" {
		return invalid("title", "Search result has no title.")
	}
	w.openForm(newIndex, DraftFromMatch(w.listingType, m))
	return nil
}

// SelectResultByID 按 ID 选中最近一次搜索的结果
func (w *Workflow) SelectResultByID(id string) error {
	w.mu.Lock()
	var found *model.GameMatch
	for i := range w.searchResults {
		if w.searchResults[i].ID == id {
			m := w.searchResults[i]
			found = &m
			break
		}
	}
	w.mu.Unlock()

	if found == nil {
		return invalid("id", "Search result not found.")
	}
	return w.SelectResult(*found)
}

// ==================== 手动录入 / 表单 ====================

// mergeForm 接收界面提交的表单；类型非法时沿用原类型
func (w *Workflow) mergeForm(d model.DraftListing) model.DraftListing {
	f := d.Clone()
	if !f.Type.Valid() {
		f.Type = w.form.Type
	}
	if f.Images == nil {
		f.Images = []string{}
	}
	if len(f.Images) > 0 {
		f.Image = f.Images[0]
	}
	if f.IsBNIS {
		f.Condition = model.ConditionMax
	}
	return f
}

// requireForm 持锁调用
func (w *Workflow) requireForm() error {
	if err := w.enter(); err != nil {
		return err
	}
	if w.state != StateEdit {
		return ErrInvalidState
	}
	return nil
}

// UpdateForm 保存表单但不提交
func (w *Workflow) UpdateForm(d model.DraftListing) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireForm(); err != nil {
		return err
	}
	w.form = w.mergeForm(d)
	return nil
}

// SubmitForm 提交表单
// 编辑已有挂单时直接提交更新；编辑草稿时原位替换；新草稿先富化再追加
func (w *Workflow) SubmitForm(ctx context.Context, d *model.DraftListing) (*CommitResult, error) {
	w.mu.Lock()
	if err := w.requireForm(); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if d != nil {
		w.form = w.mergeForm(*d)
	}

	form := w.form.Clone()
	form.Title = strings.TrimSpace(form.Title)
	if err := form.Validate(); err != nil {
		w.lastError = err.Error()
		w.mu.Unlock()
		return nil, err
	}

	if w.mode == ModeEditExisting {
		w.mu.Unlock()
		return w.commitExisting(ctx, form)
	}

	if w.editIndex >= 0 {
		defer w.mu.Unlock()
		if !w.store.ReplaceAt(w.editIndex, form) {
			return nil, ErrInvalidIndex
		}
		w.closeForm()
		return nil, nil
	}

	if !NeedsEnrichment(&form) {
		defer w.mu.Unlock()
		w.store.Append(form)
		w.closeForm()
		return nil, nil
	}

	w.busy = true
	gen := w.gen
	w.mu.Unlock()

	enriched := w.enricher.Enrich(ctx, []model.DraftListing{form})[0]

	w.mu.Lock()
	defer w.mu.Unlock()
	w.release(gen)
	if err := w.stillCurrent(gen); err != nil {
		return nil, err
	}
	w.store.Append(enriched)
	w.closeForm()
	return nil, nil
}

func (w *Workflow) closeForm() {
	w.editIndex = newIndex
	w.form = model.DraftListing{}
	w.transition(StateReview)
}

// SetFormCover 把表单第 i 张图设为封面
func (w *Workflow) SetFormCover(i int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireForm(); err != nil {
		return err
	}
	if !w.form.SetCover(i) {
		return ErrInvalidIndex
	}
	return nil
}

// RemoveFormImage 删除表单第 i 张图
func (w *Workflow) RemoveFormImage(i int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireForm(); err != nil {
		return err
	}
	if !w.form.RemoveImage(i) {
		return ErrInvalidIndex
	}
	return nil
}

// AddFormImages 追加图片（URL 或 base64 图片）
func (w *Workflow) AddFormImages(images ...string) error {
	for _, img := range images {
		if strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://") {
			continue
		}
		if _, _, err := utils.DecodeImagePayload(img); err != nil {
			return w.rejectInput(invalid("images", "Please upload an image file."))
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireForm(); err != nil {
		return err
	}
	w.form.AddImages(images...)
	return nil
}

// beginFormLookup 表单内查数据库（取封面 / 生成简介）
func (w *Workflow) beginFormLookup(minLen int, msg string) (uint64, string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireForm(); err != nil {
		return 0, "", err
	}
	title := strings.TrimSpace(w.form.Title)
	if len([]rune(title)) < minLen || title == "" {
		w.lastError = msg
		return 0, "", invalid("title", msg)
	}
	if w.deps.Catalog == nil {
		return 0, "", errors.New("catalog not configured")
	}
	w.busy = true
	w.lastError = ""
	return w.gen, title, nil
}

// FetchCover 取第一条有图的搜索结果作为封面
func (w *Workflow) FetchCover(ctx context.Context) error {
	gen, title, err := w.beginFormLookup(3, "Enter a title first to search BGG.")
	if err != nil {
		return err
	}

	results, searchErr := w.deps.Catalog.SearchGames(ctx, title)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.release(gen)
	if err := w.stillCurrent(gen); err != nil {
		return err
	}
	if searchErr != nil {
		w.lastError = msgCoverFailed
		w.log.Warn("获取封面失败", zap.String("title", title), zap.Error(searchErr))
		return fmt.Errorf("fetch cover: %w", searchErr)
	}

	for _, r := range results {
		if r.Image != "" {
			w.form.PrependCover(r.Image)
			if w.form.ExternalID == "" {
				w.form.ExternalID = r.ID
			}
			return nil
		}
	}
	w.lastError = msgCoverNotFound
	return ErrNoMatch
}

// GenerateDescription 用数据库简介填写描述，找不到时用默认文案
func (w *Workflow) GenerateDescription(ctx context.Context) error {
	gen, title, err := w.beginFormLookup(1, "Enter a title first.")
	if err != nil {
		return err
	}

	results, searchErr := w.deps.Catalog.SearchGames(ctx, title)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.release(gen)
	if err := w.stillCurrent(gen); err != nil {
		return err
	}
	if searchErr != nil {
		w.lastError = msgDescFailed
		w.log.Warn("生成描述失败", zap.String("title", title), zap.Error(searchErr))
		return fmt.Errorf("generate description: %w", searchErr)
	}

	if m := PickMatch(results, title); m != nil && m.Description != "" {
		w.form.Description = CatalogDescription(m.Description)
	} else {
		w.form.Description = fmt.Sprintf("Selling %s. Great condition.", title)
	}
	return nil
}
