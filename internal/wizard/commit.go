package wizard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pasarmalam/internal/model"

	"go.uber.org/zap"
)

// CommitResult 提交结果，调用方据此刷新挂单列表
type CommitResult struct {
	Mode     Mode            `json:"mode"`
	Count    int             `json:"count"`
	Listings []model.Listing `json:"listings,omitempty"`
}

// ==================== 规范化 ====================

// NormalizeDraft 草稿转为后端挂单
// price 空为 null，否则为数字；image 取 images[0]，其次原 image，否则空串
func NormalizeDraft(d model.DraftListing, sellerID string) (model.ListingPayload, error) {
	if d.Type == model.ListingTypeAuction {
		return model.ListingPayload{}, ErrAuctionDisabled
	}
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return model.ListingPayload{}, invalid("title", "Boardgame Title is compulsory.")
	}

	var price *float64
	if raw := strings.TrimSpace(d.Price); raw != "" {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil || p < 0 {
			return model.ListingPayload{}, invalid("price", "Price must be a whole number.")
		}
		price = &p
	}

	condition := d.Condition
	if d.IsBNIS {
		condition = model.ConditionMax
	}
	if condition == 0 {
		condition = model.ConditionDefault
	}

	image := d.Image
	if len(d.Images) > 0 {
		image = d.Images[0]
	}

	var bggID *string
	if d.ExternalID != "" {
		id := d.ExternalID
		bggID = &id
	}

	return model.ListingPayload{
		Type:         d.Type,
		Title:        title,
		Price:        price,
		Condition:    condition,
		Description:  d.Description,
		Images:       append([]string{}, d.Images...),
		Image:        image,
		OpenForTrade: d.OpenForTrade,
		IsBNIS:       d.IsBNIS,
		BggID:        bggID,
		SellerID:     sellerID,
	}, nil
}

// BuildPayloads 逐条规范化，任意一条失败则整体失败
func BuildPayloads(drafts []model.DraftListing, sellerID string) ([]model.ListingPayload, error) {
	out := make([]model.ListingPayload, 0, len(drafts))
	for i, d := range drafts {
		p, err := NormalizeDraft(d, sellerID)
		if err != nil {
			return nil, fmt.Errorf("draft %d: %w", i+1, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// userMessage 提交前校验失败时的提示
func userMessage(err error) string {
	if errors.Is(err, ErrAuctionDisabled) {
		return "Auction listings are currently disabled."
	}
	var fe *ValidationError
	if errors.As(err, &fe) {
		return fe.Message
	}
	return msgSaveFailed
}

// ==================== 提交 ====================

// Commit 批量创建；成功后清空草稿并关闭会话，失败时草稿保持不变可重试
func (w *Workflow) Commit(ctx context.Context) (*CommitResult, error) {
	w.mu.Lock()
	if err := w.requireReview(); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if w.mode != ModeCreate {
		w.mu.Unlock()
		return nil, ErrInvalidState
	}
	if w.store.Len() == 0 {
		w.mu.Unlock()
		return nil, ErrEmptyStore
	}
	payloads, err := BuildPayloads(w.store.Items(), w.actor.UserID)
	if err != nil {
		w.lastError = userMessage(err)
		w.mu.Unlock()
		return nil, err
	}
	if w.deps.Sink == nil {
		w.mu.Unlock()
		return nil, errors.New("listing sink not configured")
	}
	w.busy, w.committing = true, true
	sink, token := w.deps.Sink, w.actor.Token
	w.mu.Unlock()

	created, err := sink.CreateListings(ctx, token, payloads)
	return w.finishCommit(ModeCreate, len(payloads), created, err)
}

// commitExisting 编辑已有挂单：单条更新
func (w *Workflow) commitExisting(ctx context.Context, form model.DraftListing) (*CommitResult, error) {
	w.mu.Lock()
	if err := w.enter(); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	payload, err := NormalizeDraft(form, w.actor.UserID)
	if err != nil {
		w.lastError = userMessage(err)
		w.mu.Unlock()
		return nil, err
	}
	if w.deps.Sink == nil {
		w.mu.Unlock()
		return nil, errors.New("listing sink not configured")
	}
	w.busy, w.committing = true, true
	sink, token, id := w.deps.Sink, w.actor.Token, w.existingID
	w.mu.Unlock()

	updated, err := sink.UpdateListing(ctx, token, id, payload)
	var listings []model.Listing
	if updated != nil {
		listings = []model.Listing{*updated}
	}
	return w.finishCommit(ModeEditExisting, 1, listings, err)
}

func (w *Workflow) finishCommit(mode Mode, count int, listings []model.Listing, err error) (*CommitResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.busy, w.committing = false, false

	if err != nil {
		if !w.closed {
			w.lastError = msgSaveFailed
		}
		w.log.Error("提交挂单失败", zap.String("mode", string(mode)), zap.Int("count", count), zap.Error(err))
		return nil, fmt.Errorf("submit listings: %w", err)
	}

	w.log.Info("提交挂单成功", zap.String("mode", string(mode)), zap.Int("count", count))
	w.store.Clear()
	w.close()
	return &CommitResult{Mode: mode, Count: count, Listings: listings}, nil
}
