package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pasarmalam/internal/model"

	"go.uber.org/zap"
)

// 搜索最短查询长度
const minQueryLen = 3

// Search 防抖搜索桌游数据库
// 等待 DebounceDelay 期间若有更新的查询，本次返回 ErrSuperseded 且不调用数据库；
// 结果回来时已有更新的查询，同样丢弃
func (w *Workflow) Search(ctx context.Context, query string) ([]model.GameMatch, error) {
	query = strings.TrimSpace(query)

	w.mu.Lock()
	if err := w.enter(); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if w.state != StateAcquire || w.method != MethodLookup {
		w.mu.Unlock()
		return nil, ErrInvalidState
	}
	w.searchSeq++
	seq, gen := w.searchSeq, w.gen
	if len([]rune(query)) < minQueryLen {
		w.mu.Unlock()
		return nil, ErrQueryTooShort
	}
	delay := w.deps.DebounceDelay
	catalog := w.deps.Catalog
	w.mu.Unlock()

	if catalog == nil {
		return nil, errors.New("catalog not configured")
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if err := w.checkSearch(seq, gen); err != nil {
		return nil, err
	}

	results, searchErr := catalog.SearchGames(ctx, query)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.stillCurrent(gen); err != nil {
		return nil, err
	}
	if w.searchSeq != seq {
		return nil, ErrSuperseded
	}
	if searchErr != nil {
		w.lastError = msgSearchFailed
		w.log.Warn("搜索桌游失败", zap.String("query", query), zap.Error(searchErr))
		return nil, fmt.Errorf("search games: %w", searchErr)
	}

	w.lastError = ""
	w.searchResults = append([]model.GameMatch{}, results...)
	return append([]model.GameMatch{}, results...), nil
}

func (w *Workflow) checkSearch(seq, gen uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.stillCurrent(gen); err != nil {
		return err
	}
	if w.searchSeq != seq {
		return ErrSuperseded
	}
	return nil
}
