package wizard

import "pasarmalam/internal/model"

// Store 提交前累积的草稿列表，保持顺序
// 不做并发保护，由 Workflow 的锁负责
type Store struct {
	items []model.DraftListing
}

// Append 追加到末尾，不去重
func (s *Store) Append(d model.DraftListing) {
	s.items = append(s.items, d.Clone())
}

// ReplaceAt 替换指定位置，下标非法时什么都不做
func (s *Store) ReplaceAt(i int, d model.DraftListing) bool {
	if i < 0 || i >= len(s.items) {
		return false
	}
	s.items[i] = d.Clone()
	return true
}

// RemoveAt 删除指定位置，返回删除后是否为空
func (s *Store) RemoveAt(i int) (empty bool, ok bool) {
	if i < 0 || i >= len(s.items) {
		return len(s.items) == 0, false
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	return len(s.items) == 0, true
}

// SetPrice 只接受空串或纯数字，否则保持原值
func (s *Store) SetPrice(i int, raw string) bool {
	if i < 0 || i >= len(s.items) || !model.ValidPriceInput(raw) {
		return false
	}
	s.items[i].Price = raw
	return true
}

// Update 原地修改
func (s *Store) Update(i int, fn func(d *model.DraftListing)) bool {
	if i < 0 || i >= len(s.items) {
		return false
	}
	fn(&s.items[i])
	return true
}

// At 取副本
func (s *Store) At(i int) (model.DraftListing, bool) {
	if i < 0 || i >= len(s.items) {
		return model.DraftListing{}, false
	}
	return s.items[i].Clone(), true
}

// Items 全部草稿的副本
func (s *Store) Items() []model.DraftListing {
	out := make([]model.DraftListing, len(s.items))
	for i, d := range s.items {
		out[i] = d.Clone()
	}
	return out
}

func (s *Store) Len() int { return len(s.items) }

func (s *Store) Clear() { s.items = nil }

// replaceAll 用富化后的结果整体替换（调用方保证长度一致）
func (s *Store) replaceAll(items []model.DraftListing) {
	s.items = make([]model.DraftListing, len(items))
	for i, d := range items {
		s.items[i] = d.Clone()
	}
}
