package flow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/engine"
)

// Engine — движок навигации одной сессии анкеты.
//
// Engine владеет FormState. Все изменения проходят через Dispatch;
// запросы (Snapshot, GetResponse, GetProgress, ...) возвращают копии.
//
// Навигационные действия (Navigate, GoBack, GoToQuestion) захватывают
// одноместный токен: пока одна навигация выполняется, следующая
// отбрасывается с ErrNavigationInProgress, а не ставится в очередь.
type Engine struct {
	graph     *engine.Graph
	validator engine.Validator
	wrapBack  bool
	logger    *slog.Logger
	now       func() time.Time

	// nav — навигационный токен (буфер 1).
	nav chan struct{}

	// state — FormState; защищён mu.
	state *domain.FormState
	mu    sync.RWMutex
}

// Config — конфигурация Engine.
type Config struct {
	// Graph — граф формы (обязателен).
	Graph *engine.Graph

	// Validator — проверка input-значений (default: engine.AcceptAll).
	Validator engine.Validator

	// State — восстановленное состояние (resume). nil — новая сессия.
	State *domain.FormState

	// WrapBack — "назад" с первого отвеченного вопроса переходит к последнему.
	// По умолчанию это no-op.
	WrapBack bool

	Logger *slog.Logger

	// Now — источник времени для журнала навигации (default: time.Now).
	Now func() time.Time
}

// New создаёт Engine.
//
// Восстановленное состояние заменяет новое целиком. Если его текущий
// вопрос больше не существует в форме, навигация начинается с первого вопроса.
func New(cfg Config) (*Engine, error) {
	if cfg.Graph == nil {
		return nil, fmt.Errorf("flow: graph is required")
	}

	validator := cfg.Validator
	if validator == nil {
		validator = engine.AcceptAll{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		graph:     cfg.Graph,
		validator: validator,
		wrapBack:  cfg.WrapBack,
		logger:    logger,
		now:       now,
		nav:       make(chan struct{}, 1),
	}

	if cfg.State != nil {
		e.state = cfg.State.Clone()
		if !e.refExists(e.state.ActiveQuestion) {
			logger.Warn("restored active question not found, starting over",
				"block_id", e.state.ActiveQuestion.BlockID,
				"question_id", e.state.ActiveQuestion.QuestionID,
			)
			e.state.ActiveQuestion = e.graph.FirstQuestion()
		}
	} else {
		e.state = e.freshState()
	}

	return e, nil
}

// freshState создаёт начальное состояние: активные по умолчанию блоки и первый вопрос.
func (e *Engine) freshState() *domain.FormState {
	s := domain.NewFormState()
	for _, id := range e.graph.DefaultActive() {
		s.ActiveBlocks.Add(id)
	}
	s.ActiveQuestion = e.graph.FirstQuestion()
	return s
}

// Dispatch применяет действие к состоянию.
//
// Успешное изменяющее действие увеличивает FormState.Version.
// Ошибка означает, что состояние не изменилось.
func (e *Engine) Dispatch(a Action) (Result, error) {
	// 1. Навигационный токен
	if _, ok := a.(navigation); ok {
		select {
		case e.nav <- struct{}{}:
			defer func() { <-e.nav }()
		default:
			e.logger.Debug("navigation dropped", "action", fmt.Sprintf("%T", a))
			return e.result(), ErrNavigationInProgress
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// 2. Применяем действие
	var (
		res Result
		err error
	)
	switch act := a.(type) {
	case SetResponse:
		res, err = e.setResponse(act)
	case Navigate:
		res, err = e.navigate(act)
	case GoBack:
		res, err = e.goBack()
	case GoToQuestion:
		res, err = e.goToQuestion(act)
	case AddActiveBlock:
		res, err = e.addActiveBlock(act.BlockID)
	case RemoveActiveBlock:
		res, err = e.removeActiveBlock(act.BlockID)
	case MarkBlockCompleted:
		res, err = e.markCompleted(act.BlockID)
	case RemoveBlockFromCompleted:
		res, err = e.unmarkCompleted(act.BlockID)
	case CreateDynamicBlock:
		res, err = e.createDynamicBlock(act.BlueprintID)
	case DeleteDynamicBlock:
		res, err = e.deleteDynamicBlock(act.BlockID)
	case Reset:
		res, err = e.reset()
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownAction, a)
	}

	// 3. Версия
	if err == nil && res.Changed {
		e.state.Version++
	}
	res.Version = e.state.Version
	res.ActiveQuestion = e.state.ActiveQuestion
	res.Stopped = e.state.FlowStopped

	return res, err
}

// result возвращает Result без изменений (для отброшенных действий).
func (e *Engine) result() Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Result{
		Version:        e.state.Version,
		ActiveQuestion: e.state.ActiveQuestion,
		Stopped:        e.state.FlowStopped,
	}
}

// reset заменяет состояние новым. Версия продолжает расти.
func (e *Engine) reset() (Result, error) {
	version := e.state.Version
	e.state = e.freshState()
	e.state.Version = version
	return Result{Changed: true}, nil
}

// Graph возвращает граф формы.
func (e *Engine) Graph() *engine.Graph {
	return e.graph
}

// Snapshot возвращает глубокую копию состояния.
func (e *Engine) Snapshot() *domain.FormState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// Version возвращает текущую версию состояния.
func (e *Engine) Version() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Version
}

// ActiveQuestion возвращает текущий вопрос.
// Для служебных вопросов (конец формы, остановка) question == nil.
func (e *Engine) ActiveQuestion() (domain.QuestionRef, *domain.Question) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ref := e.state.ActiveQuestion
	_, q := e.locateIn(ref.BlockID, ref.QuestionID)
	if q == nil {
		return ref, nil
	}
	clone := q.Clone()
	return ref, &clone
}

// Question возвращает вопрос (статический или динамический) по ID.
func (e *Engine) Question(questionID string) (*domain.Question, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, q := e.locate(questionID)
	if q == nil {
		return nil, false
	}
	clone := q.Clone()
	return &clone, true
}

// GetResponse возвращает ответ на placeholder.
func (e *Engine) GetResponse(questionID, key string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, ok := e.state.Responses.Get(questionID, key)
	return domain.CloneValue(v), ok
}

// GetResponses возвращает все ответы на вопрос.
func (e *Engine) GetResponses(questionID string) map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]any)
	for k, v := range e.state.Responses.Clone()[questionID] {
		out[k] = v
	}
	return out
}

// InvalidPlaceholders возвращает placeholder'ы вопроса, мешающие перейти дальше.
func (e *Engine) InvalidPlaceholders(questionID string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, q := e.locate(questionID)
	if q == nil {
		return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, questionID)
	}
	return engine.InvalidPlaceholders(q, e.state.Responses, e.validator), nil
}

// IsActive проверяет, активен ли блок.
func (e *Engine) IsActive(blockID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.ActiveBlocks.Has(blockID)
}

// IsBlockCompleted проверяет отметку о завершении блока.
func (e *Engine) IsBlockCompleted(blockID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.CompletedBlocks.Has(blockID)
}

// GetIncompleteBlocks возвращает незаполненные копии blueprint'а.
func (e *Engine) GetIncompleteBlocks(blueprintID string) []domain.Block {
	e.mu.RLock()
	defer e.mu.RUnlock()

	incomplete := engine.IncompleteCopies(blueprintID, e.state.DynamicBlocks, e.state.Responses, e.validator)
	out := make([]domain.Block, len(incomplete))
	for i, b := range incomplete {
		out[i] = b.Clone()
	}
	return out
}

// GetProgress возвращает процент отвеченных вопросов среди активных блоков.
// На конце формы — 100.
func (e *Engine) GetProgress() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.isEndOfForm(e.state.ActiveQuestion) {
		return 100
	}

	total, answered := 0, 0
	for _, b := range e.activeBlockList() {
		for i := range b.Questions {
			total++
			if e.state.IsAnswered(b.Questions[i].QuestionID) {
				answered++
			}
		}
	}

	if total == 0 {
		return 0
	}
	return answered * 100 / total
}

// ActiveBlocks возвращает активные блоки: статические в порядке обхода,
// затем копии в порядке создания.
func (e *Engine) ActiveBlocks() []domain.Block {
	e.mu.RLock()
	defer e.mu.RUnlock()

	list := e.activeBlockList()
	out := make([]domain.Block, len(list))
	for i, b := range list {
		out[i] = b.Clone()
	}
	return out
}

// RepeatingGroups возвращает копии повторяемых секций, сведённые в записи.
func (e *Engine) RepeatingGroups() map[string][]domain.RepeatingGroupEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return engine.RepeatingGroups(e.state.DynamicBlocks, e.state.Responses)
}

// activeBlockList — активные блоки без копирования (вызывать под mu).
func (e *Engine) activeBlockList() []*domain.Block {
	out := make([]*domain.Block, 0, len(e.state.ActiveBlocks))
	for _, b := range e.graph.Order() {
		if e.state.ActiveBlocks.Has(b.BlockID) {
			out = append(out, b)
		}
	}
	for i := range e.state.DynamicBlocks {
		b := &e.state.DynamicBlocks[i]
		if e.state.ActiveBlocks.Has(b.BlockID) {
			out = append(out, b)
		}
	}
	return out
}

// block возвращает статический (не blueprint) или динамический блок.
func (e *Engine) block(blockID string) *domain.Block {
	if b := e.graph.Block(blockID); b != nil {
		if b.IsBlueprint() {
			return nil
		}
		return b
	}
	return e.state.DynamicBlock(blockID)
}

// locate ищет вопрос полным перебором: статические блоки, затем копии.
func (e *Engine) locate(questionID string) (*domain.Block, *domain.Question) {
	if blockID, ok := e.graph.QuestionBlockID(questionID); ok {
		if b := e.block(blockID); b != nil {
			return b, b.Question(questionID)
		}
	}
	for i := range e.state.DynamicBlocks {
		b := &e.state.DynamicBlocks[i]
		if q := b.Question(questionID); q != nil {
			return b, q
		}
	}
	return nil, nil
}

// locateIn ищет вопрос в конкретном блоке.
func (e *Engine) locateIn(blockID, questionID string) (*domain.Block, *domain.Question) {
	b := e.block(blockID)
	if b == nil {
		return nil, nil
	}
	q := b.Question(questionID)
	if q == nil {
		return nil, nil
	}
	return b, q
}

// refExists проверяет адрес вопроса, включая служебные.
func (e *Engine) refExists(ref domain.QuestionRef) bool {
	if e.isEndOfForm(ref) || isStopRef(ref) {
		return true
	}
	_, q := e.locateIn(ref.BlockID, ref.QuestionID)
	return q != nil
}

func (e *Engine) isEndOfForm(ref domain.QuestionRef) bool {
	if ref == e.graph.EndOfForm() {
		return true
	}
	return ref.BlockID == domain.EndOfFormBlockID && ref.QuestionID == domain.EndOfFormQuestionID
}

func isStopRef(ref domain.QuestionRef) bool {
	return ref.BlockID == domain.StopFlowBlockID && ref.QuestionID == domain.StopFlowQuestionID
}
