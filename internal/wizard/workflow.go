package wizard

import (
	"math"
	"strconv"
	"sync"
	"time"

	"pasarmalam/internal/model"
	"pasarmalam/pkg/logger"

	"go.uber.org/zap"
)

// ==================== 状态 ====================

// State 向导状态
type State string

const (
	StateSelectType   State = "select_type"
	StateSelectMethod State = "select_method"
	StateAcquire      State = "acquire"
	StateReview       State = "review"
	StateEdit         State = "edit"
	StateClosed       State = "closed"
)

// Method 获取方式
type Method string

const (
	MethodManual Method = "manual"
	MethodLookup Method = "lookup"
	MethodScan   Method = "scan"
	MethodParse  Method = "parse"
)

// Valid 是否为已知方式
func (m Method) Valid() bool {
	switch m {
	case MethodManual, MethodLookup, MethodScan, MethodParse:
		return true
	}
	return false
}

// Mode 进入方式：新建一批或编辑已有挂单
type Mode string

const (
	ModeCreate       Mode = "create"
	ModeEditExisting Mode = "edit_existing"
)

// newIndex 表示表单是新草稿而不是编辑已有草稿
const newIndex = -1

// ==================== 依赖 ====================

// Deps 向导依赖
type Deps struct {
	Catalog    Catalog
	Recognizer ImageRecognizer
	Parser     TextParser
	Sink       ListingSink

	EnrichInterval time.Duration // 富化查询间隔
	DebounceDelay  time.Duration // 搜索防抖

	Log *zap.Logger
}

// ==================== Workflow ====================

// Workflow 一次“添加桌游”会话
// 调用协作方期间不持锁；结果回来后检查 closed 和 gen，
// 会话已关闭或状态已变化时丢弃结果
type Workflow struct {
	mu sync.Mutex

	id         string
	actor      Actor
	mode       Mode
	existingID string

	state       State
	method      Method
	listingType model.ListingType

	store     Store
	form      model.DraftListing
	editIndex int

	searchResults []model.GameMatch
	searchSeq     uint64

	lastError  string
	closed     bool
	busy       bool
	committing bool
	gen        uint64

	deps     *Deps
	enricher *Enricher
	log      *zap.Logger

	now        func() time.Time
	lastActive time.Time
}

func newWorkflow(id string, actor Actor, deps *Deps, enricher *Enricher) *Workflow {
	if deps == nil {
		deps = &Deps{}
	}
	w := &Workflow{
		id:        id,
		actor:     actor,
		mode:      ModeCreate,
		state:     StateSelectType,
		editIndex: newIndex,
		deps:      deps,
		enricher:  enricher,
		log:       logger.OrNop(deps.Log).With(zap.String("session", id)),
		now:       time.Now,
	}
	w.lastActive = w.now()
	return w
}

// NewWorkflow 新建会话，初始状态为选择类型
func NewWorkflow(id string, actor Actor, deps *Deps) *Workflow {
	var enricher *Enricher
	if deps != nil {
		enricher = NewEnricher(deps.Catalog, deps.EnrichInterval, deps.Log)
	}
	return newWorkflow(id, actor, deps, enricher)
}

// NewEditWorkflow 编辑已有挂单，直接进入编辑表单
func NewEditWorkflow(id string, actor Actor, deps *Deps, listing model.Listing) (*Workflow, error) {
	if listing.ID == "" {
		return nil, invalid("id", "Listing id is required.")
	}
	if listing.SellerID != "" && listing.SellerID != actor.UserID {
		return nil, ErrForbidden
	}

	w := NewWorkflow(id, actor, deps)
	w.mode = ModeEditExisting
	w.existingID = listing.ID
	w.listingType = listing.Type
	w.state = StateEdit
	w.form = DraftFromListing(listing)
	return w, nil
}

// DraftFromListing 后端挂单转为表单草稿
func DraftFromListing(l model.Listing) model.DraftListing {
	d := model.NewDraft(l.Type)
	d.Title = l.Title
	if l.Price != nil {
		d.Price = strconv.FormatFloat(math.Round(*l.Price), 'f', 0, 64)
	}
	d.Condition = model.NormalizeCondition(l.Condition)
	d.Description = l.Description
	d.OpenForTrade = l.OpenForTrade
	d.IsBNIS = l.IsBNIS
	if l.BggID != nil {
		d.ExternalID = *l.BggID
	}
	d.Images = append([]string{}, l.Images...)
	if len(d.Images) == 0 && l.Image != "" {
		d.Images = []string{l.Image}
	}
	if len(d.Images) > 0 {
		d.Image = d.Images[0]
	}
	return d
}

func (w *Workflow) ID() string { return w.id }

// Owner 会话所属用户
func (w *Workflow) Owner() string { return w.actor.UserID }

// IdleSince 最近一次操作时间
func (w *Workflow) IdleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActive
}

// Closed 是否已关闭
func (w *Workflow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// ==================== 内部辅助（调用方持锁）====================

// enter 同步操作入口：检查关闭与忙碌，记录活跃时间
func (w *Workflow) enter() error {
	if w.closed {
		return ErrClosed
	}
	if w.busy {
		return ErrBusy
	}
	w.lastActive = w.now()
	return nil
}

// transition 切换状态并使在途结果失效
func (w *Workflow) transition(s State) {
	w.state = s
	w.gen++
	w.lastError = ""
}

// afterEmpty 草稿清空后回到选择获取方式
func (w *Workflow) afterEmpty() {
	w.method = ""
	w.transition(StateSelectMethod)
}

// stillCurrent 异步结果回来后判断是否仍可应用
func (w *Workflow) stillCurrent(gen uint64) error {
	if w.closed {
		return ErrClosed
	}
	if w.gen != gen {
		return ErrSuperseded
	}
	return nil
}

// ==================== 状态迁移 ====================

// SelectType 选择挂单类型
func (w *Workflow) SelectType(t model.ListingType) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(); err != nil {
		return err
	}
	if w.state != StateSelectType {
		return ErrInvalidState
	}
	if !t.Valid() {
		return invalid("type", "Unknown listing type.")
	}
	w.listingType = t
	w.transition(StateSelectMethod)
	return nil
}

// SelectMethod 选择获取方式；手动录入直接进入空表单
func (w *Workflow) SelectMethod(m Method) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(); err != nil {
		return err
	}
	if w.state != StateSelectMethod {
		return ErrInvalidState
	}
	if !m.Valid() {
		return invalid("method", "Unknown input method.")
	}

	w.method = m
	w.searchResults = nil
	if m == MethodManual {
		w.openForm(newIndex, model.NewDraft(w.listingType))
		return nil
	}
	w.transition(StateAcquire)
	return nil
}

// openForm 进入编辑表单，idx = -1 为新草稿
func (w *Workflow) openForm(idx int, d model.DraftListing) {
	w.editIndex = idx
	w.form = d.Clone()
	w.transition(StateEdit)
}

// Back 返回上一步
func (w *Workflow) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.committing {
		return ErrBusy
	}
	w.lastActive = w.now()
	// 允许在识图等操作进行中返回，在途结果因 gen 变化被丢弃
	w.busy = false

	switch w.state {
	case StateEdit:
		if w.mode == ModeEditExisting {
			w.close()
			return nil
		}
		w.editIndex = newIndex
		w.form = model.DraftListing{}
		if w.store.Len() > 0 {
			w.transition(StateReview)
		} else {
			w.afterEmpty()
		}
	case StateAcquire:
		w.method = ""
		w.searchResults = nil
		w.transition(StateSelectMethod)
	case StateSelectMethod, StateReview:
		w.method = ""
		w.transition(StateSelectType)
	default:
		return ErrInvalidState
	}
	return nil
}

// Close 取消，之后到达的异步结果一律丢弃
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.close()
}

func (w *Workflow) close() {
	if w.closed {
		return
	}
	w.closed = true
	w.busy = false
	w.committing = false
	w.transition(StateClosed)
}

// ==================== 快照 ====================

// DraftView 草稿及其成色描述
type DraftView struct {
	model.DraftListing
	ConditionText string `json:"conditionText"`
}

// Snapshot 只读视图，供界面渲染
type Snapshot struct {
	ID            string            `json:"id"`
	State         State             `json:"state"`
	Method        Method            `json:"method,omitempty"`
	Type          model.ListingType `json:"type,omitempty"`
	Mode          Mode              `json:"mode"`
	ExistingID    string            `json:"existingId,omitempty"`
	EditIndex     *int              `json:"editIndex,omitempty"`
	Form          *DraftView        `json:"form,omitempty"`
	Drafts        []DraftView       `json:"drafts"`
	SearchResults []model.GameMatch `json:"searchResults,omitempty"`
	LastError     string            `json:"lastError,omitempty"`
	Busy          bool              `json:"busy"`
}

func viewOf(d model.DraftListing) DraftView {
	return DraftView{DraftListing: d, ConditionText: model.ConditionLabel(d.Condition)}
}

// Snapshot 当前状态
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot()
}

func (w *Workflow) snapshot() Snapshot {
	s := Snapshot{
		ID:            w.id,
		State:         w.state,
		Method:        w.method,
		Type:          w.listingType,
		Mode:          w.mode,
		ExistingID:    w.existingID,
		LastError:     w.lastError,
		Busy:          w.busy,
		SearchResults: append([]model.GameMatch(nil), w.searchResults...),
	}
	items := w.store.Items()
	s.Drafts = make([]DraftView, len(items))
	for i, d := range items {
		s.Drafts[i] = viewOf(d)
	}
	if w.state == StateEdit {
		f := viewOf(w.form.Clone())
		s.Form = &f
		if w.editIndex >= 0 {
			idx := w.editIndex
			s.EditIndex = &idx
		}
	}
	return s
}
