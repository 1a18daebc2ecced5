package wizard

import (
	"context"
	"strings"
	"sync"
	"testing"

	"pasarmalam/internal/model"
)

// 1x1 PNG
const testPhoto = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// ==================== Mock 协作方 ====================

type mockCatalog struct {
	mu       sync.Mutex
	calls    []string
	inFlight int
	maxSeen  int
	searchFn func(ctx context.Context, q string) ([]model.GameMatch, error)
}

func (m *mockCatalog) SearchGames(ctx context.Context, q string) ([]model.GameMatch, error) {
	m.mu.Lock()
	m.calls = append(m.calls, q)
	m.inFlight++
	if m.inFlight > m.maxSeen {
		m.maxSeen = m.inFlight
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return nil, nil
}

func (m *mockCatalog) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.calls...)
}

// catalogOf 按标题（忽略大小写）返回固定结果
func catalogOf(byTitle map[string][]model.GameMatch) *mockCatalog {
	return &mockCatalog{searchFn: func(_ context.Context, q string) ([]model.GameMatch, error) {
		return byTitle[strings.ToLower(q)], nil
	}}
}

type mockRecognizer struct {
	scanFn func(ctx context.Context, image string) ([]model.ParsedItem, error)
}

func (m *mockRecognizer) ScanImage(ctx context.Context, image string) ([]model.ParsedItem, error) {
	return m.scanFn(ctx, image)
}

type mockParser struct {
	parseFn func(ctx context.Context, text string, t model.ListingType) ([]model.ParsedItem, error)
}

func (m *mockParser) ParseText(ctx context.Context, text string, t model.ListingType) ([]model.ParsedItem, error) {
	return m.parseFn(ctx, text, t)
}

type mockSink struct {
	mu       sync.Mutex
	batches  [][]model.ListingPayload
	updates  map[string]model.ListingPayload
	createFn func(items []model.ListingPayload) error
	updateFn func(id string, item model.ListingPayload) error
}

func (m *mockSink) CreateListings(_ context.Context, _ string, items []model.ListingPayload) ([]model.Listing, error) {
	if m.createFn != nil {
		if err := m.createFn(items); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, items)
	out := make([]model.Listing, len(items))
	for i, it := range items {
		out[i] = model.Listing{ID: it.Title, Title: it.Title, Type: it.Type}
	}
	return out, nil
}

func (m *mockSink) UpdateListing(_ context.Context, _ string, id string, item model.ListingPayload) (*model.Listing, error) {
	if m.updateFn != nil {
		if err := m.updateFn(id, item); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updates == nil {
		m.updates = map[string]model.ListingPayload{}
	}
	m.updates[id] = item
	return &model.Listing{ID: id, Title: item.Title}, nil
}

func items(titles ...string) []model.ParsedItem {
	out := make([]model.ParsedItem, len(titles))
	for i, t := range titles {
		out[i] = model.ParsedItem{Title: t}
	}
	return out
}

// ==================== 辅助函数 ====================

var testActor = Actor{UserID: "u-1", DisplayName: "Ahmad", Token: "tok"}

func newTestWorkflow(deps *Deps) *Workflow {
	return NewWorkflow("s-1", testActor, deps)
}

// reachAcquire 选择类型和获取方式
func reachAcquire(t *testing.T, w *Workflow, lt model.ListingType, m Method) {
	t.Helper()
	if err := w.SelectType(lt); err != nil {
		t.Fatalf("SelectType: %v", err)
	}
	if err := w.SelectMethod(m); err != nil {
		t.Fatalf("SelectMethod: %v", err)
	}
}

// reviewWith 通过求购清单把若干标题放进审核页
func reviewWith(t *testing.T, w *Workflow, titles ...string) {
	t.Helper()
	reachAcquire(t, w, model.ListingTypeBuy, MethodParse)
	if err := w.Parse(context.Background(), strings.Join(titles, "\n")); err != nil {
		t.Fatalf("Parse: %v", err)
	}
}
