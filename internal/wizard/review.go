package wizard

import (
	"context"

	"pasarmalam/internal/model"
)

// requireReview 持锁调用
func (w *Workflow) requireReview() error {
	if err := w.enter(); err != nil {
		return err
	}
	if w.state != StateReview {
		return ErrInvalidState
	}
	return nil
}

// EditDraft 编辑第 i 条草稿（表单预填）
func (w *Workflow) EditDraft(i int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireReview(); err != nil {
		return err
	}
	d, ok := w.store.At(i)
	if !ok {
		return ErrInvalidIndex
	}
	w.openForm(i, d)
	return nil
}

// AddMore 从审核页继续手动添加
func (w *Workflow) AddMore() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireReview(); err != nil {
		return err
	}
	w.method = MethodManual
	w.openForm(newIndex, model.NewDraft(w.listingType))
	return nil
}

// DeleteDraft 删除第 i 条；删空后回到选择获取方式
func (w *Workflow) DeleteDraft(i int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireReview(); err != nil {
		return err
	}
	empty, ok := w.store.RemoveAt(i)
	if !ok {
		return ErrInvalidIndex
	}
	if empty {
		w.afterEmpty()
	}
	return nil
}

// SetDraftPrice 行内改价；非法输入保持原值
// 返回改价后的价格与是否接受，两者在同一次加锁内读出
func (w *Workflow) SetDraftPrice(i int, raw string) (string, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireReview(); err != nil {
		return "", false, err
	}
	if i < 0 || i >= w.store.Len() {
		return "", false, ErrInvalidIndex
	}
	accepted := w.store.SetPrice(i, raw)
	d, _ := w.store.At(i)
	return d.Price, accepted, nil
}

// SetDraftCover 把第 i 条草稿的第 img 张图设为封面
func (w *Workflow) SetDraftCover(i, img int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireReview(); err != nil {
		return err
	}
	ok := false
	if !w.store.Update(i, func(d *model.DraftListing) { ok = d.SetCover(img) }) || !ok {
		return ErrInvalidIndex
	}
	return nil
}

// AutoFill 对仍缺封面或简介的草稿重新富化，重复执行结果不变
func (w *Workflow) AutoFill(ctx context.Context) error {
	w.mu.Lock()
	if err := w.requireReview(); err != nil {
		w.mu.Unlock()
		return err
	}
	items := w.store.Items()
	w.busy = true
	gen := w.gen
	w.mu.Unlock()

	enriched := w.enricher.Enrich(ctx, items)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.release(gen)
	if err := w.stillCurrent(gen); err != nil {
		return err
	}
	w.store.replaceAll(enriched)
	return nil
}
