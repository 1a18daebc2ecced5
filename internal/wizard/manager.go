package wizard

import (
	"sync"
	"time"

	"pasarmalam/internal/model"
	"pasarmalam/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager 管理打开中的向导会话
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Workflow

	deps     *Deps
	enricher *Enricher
	log      *zap.Logger
	now      func() time.Time
}

// NewManager 创建会话管理器
func NewManager(deps *Deps) *Manager {
	if deps == nil {
		deps = &Deps{}
	}
	return &Manager{
		sessions: make(map[string]*Workflow),
		deps:     deps,
		enricher: NewEnricher(deps.Catalog, deps.EnrichInterval, deps.Log),
		log:      logger.OrNop(deps.Log),
		now:      time.Now,
	}
}

func (m *Manager) add(w *Workflow) *Workflow {
	w.now = m.now
	w.lastActive = m.now()
	m.mu.Lock()
	m.sessions[w.id] = w
	m.mu.Unlock()
	m.log.Debug("打开向导会话", zap.String("session", w.id), zap.String("user_id", w.actor.UserID))
	return w
}

// Open 新建会话
func (m *Manager) Open(actor Actor) *Workflow {
	return m.add(newWorkflow(uuid.NewString(), actor, m.deps, m.enricher))
}

// OpenExisting 打开已有挂单的编辑会话
func (m *Manager) OpenExisting(actor Actor, listing model.Listing) (*Workflow, error) {
	w, err := NewEditWorkflow(uuid.NewString(), actor, m.deps, listing)
	if err != nil {
		return nil, err
	}
	w.enricher = m.enricher
	return m.add(w), nil
}

// Get 获取会话并校验归属
func (m *Manager) Get(id, userID string) (*Workflow, error) {
	m.mu.RLock()
	w, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if w.Owner() != userID {
		return nil, ErrForbidden
	}
	return w, nil
}

// Close 取消并移除会话
func (m *Manager) Close(id, userID string) error {
	w, err := m.Get(id, userID)
	if err != nil {
		return err
	}
	w.Close()
	m.remove(id)
	return nil
}

// Remove 移除会话（提交成功后调用）
func (m *Manager) Remove(id string) {
	m.remove(id)
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Sweep 关闭并移除空闲超过 maxIdle 或已关闭的会话，返回移除数量
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.RLock()
	var stale []*Workflow
	for _, w := range m.sessions {
		if w.Closed() || w.IdleSince().Before(cutoff) {
			stale = append(stale, w)
		}
	}
	m.mu.RUnlock()

	for _, w := range stale {
		w.Close()
		m.remove(w.id)
	}
	if len(stale) > 0 {
		m.log.Info("清理向导会话", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Len 打开中的会话数
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
