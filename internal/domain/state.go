package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// QuestionRef — адрес вопроса: блок + вопрос.
type QuestionRef struct {
	BlockID    string `json:"block_id"`
	QuestionID string `json:"question_id"`
}

// IsZero возвращает true для пустого адреса.
func (r QuestionRef) IsZero() bool {
	return r.BlockID == "" && r.QuestionID == ""
}

// NavigationEvent — запись в журнале переходов.
type NavigationEvent struct {
	From    QuestionRef `json:"from"`
	To      QuestionRef `json:"to"`
	LeadsTo string      `json:"leads_to,omitempty"`
	Back    bool        `json:"back,omitempty"`
	At      time.Time   `json:"at"`
}

// StringSet — множество строк. В JSON — отсортированный массив.
type StringSet map[string]struct{}

// NewStringSet создаёт множество из значений.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Add добавляет значение. Возвращает false, если оно уже было.
func (s StringSet) Add(v string) bool {
	if _, ok := s[v]; ok {
		return false
	}
	s[v] = struct{}{}
	return true
}

// Remove удаляет значение. Возвращает false, если его не было.
func (s StringSet) Remove(v string) bool {
	if _, ok := s[v]; !ok {
		return false
	}
	delete(s, v)
	return true
}

// Has проверяет наличие значения.
func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted возвращает значения в лексикографическом порядке.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Clone возвращает копию множества.
func (s StringSet) Clone() StringSet {
	out := make(StringSet, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// MarshalJSON реализует json.Marshaler.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON реализует json.Unmarshaler.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewStringSet(values...)
	return nil
}

// Responses — ответы: question_id → placeholder_key → значение.
//
// Значение — строка (select, input) или список строк (select с multiple).
type Responses map[string]map[string]any

// Get возвращает значение ответа.
func (r Responses) Get(questionID, key string) (any, bool) {
	byKey, ok := r[questionID]
	if !ok {
		return nil, false
	}
	v, ok := byKey[key]
	return v, ok
}

// Has возвращает true, если на placeholder есть непустой ответ.
func (r Responses) Has(questionID, key string) bool {
	v, ok := r.Get(questionID, key)
	if !ok {
		return false
	}
	return len(ValueStrings(v)) > 0
}

// Set записывает значение ответа.
func (r Responses) Set(questionID, key string, value any) {
	byKey, ok := r[questionID]
	if !ok {
		byKey = make(map[string]any)
		r[questionID] = byKey
	}
	byKey[key] = value
}

// Clone возвращает глубокую копию ответов. Списки копируются как []string.
func (r Responses) Clone() Responses {
	out := make(Responses, len(r))
	for q, byKey := range r {
		inner := make(map[string]any, len(byKey))
		for k, v := range byKey {
			inner[k] = CloneValue(v)
		}
		out[q] = inner
	}
	return out
}

// normalize приводит списки после json.Unmarshal ([]any) к []string.
func (r Responses) normalize() {
	for _, byKey := range r {
		for k, v := range byKey {
			if list, ok := v.([]any); ok {
				byKey[k] = ValueStrings(list)
			}
		}
	}
}

// CloneValue копирует значение ответа. Списки возвращаются как []string.
func CloneValue(v any) any {
	switch list := v.(type) {
	case []string:
		return slices.Clone(list)
	case []any:
		return ValueStrings(list)
	default:
		return v
	}
}

// ValueStrings приводит значение ответа к списку непустых строк.
//
// Поддерживает string, []string и []any (результат json.Unmarshal).
// Числа и bool форматируются через fmt.
func ValueStrings(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		out := make([]string, 0, len(val))
		for _, s := range val {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, ValueStrings(item)...)
		}
		return out
	default:
		return []string{fmt.Sprint(val)}
	}
}

// FormState — единственный источник истины движка анкеты.
//
// Изменяется только через операции движка (flow.Engine.Dispatch).
// Рендеру и персистентности передаётся копия (Snapshot).
type FormState struct {
	// Version — увеличивается на каждое успешное изменение состояния.
	Version int64 `json:"version"`

	// ActiveBlocks — блоки, участвующие в навигации.
	ActiveBlocks StringSet `json:"active_blocks"`

	// ActiveQuestion — текущий вопрос.
	ActiveQuestion QuestionRef `json:"active_question"`

	// Responses — ответы пользователя.
	Responses Responses `json:"responses"`

	// AnsweredQuestions — упорядоченное множество отвеченных вопросов
	// (порядок ответов, а не порядок объявления).
	AnsweredQuestions []string `json:"answered_questions"`

	// CompletedBlocks — завершённые блоки.
	CompletedBlocks StringSet `json:"completed_blocks"`

	// DynamicBlocks — копии blueprint'ов, созданные в сессии.
	DynamicBlocks []Block `json:"dynamic_blocks"`

	// NavigationHistory — журнал переходов (только добавление).
	NavigationHistory []NavigationEvent `json:"navigation_history"`

	// BlockActivations — какие блоки активировал ответ на вопрос (question_id → block_ids).
	BlockActivations map[string][]string `json:"block_activations"`

	// PendingRemovals — блоки, удаление которых отложено до ухода из них.
	PendingRemovals []string `json:"pending_removals"`

	// BlueprintCounters — максимальный выданный номер копии по blueprint'у.
	// Номера не переиспользуются даже после удаления копий.
	BlueprintCounters map[string]int `json:"blueprint_counters"`

	// Started — в сессии был хотя бы один ответ. Очистка ответов флаг не
	// снимает, только reset.
	Started bool `json:"started,omitempty"`

	// FlowStopped — анкета остановлена через stop_flow.
	FlowStopped bool `json:"flow_stopped,omitempty"`

	// AllBlocksCompleted — пересчитывается при достижении конца формы.
	AllBlocksCompleted bool `json:"all_blocks_completed,omitempty"`
}

// NewFormState создаёт пустое состояние.
func NewFormState() *FormState {
	return &FormState{
		ActiveBlocks:      NewStringSet(),
		Responses:         make(Responses),
		AnsweredQuestions: make([]string, 0),
		CompletedBlocks:   NewStringSet(),
		DynamicBlocks:     make([]Block, 0),
		NavigationHistory: make([]NavigationEvent, 0),
		BlockActivations:  make(map[string][]string),
		PendingRemovals:   make([]string, 0),
		BlueprintCounters: make(map[string]int),
	}
}

// Normalize инициализирует nil-поля (после json.Unmarshal старых снапшотов).
func (s *FormState) Normalize() {
	if s.ActiveBlocks == nil {
		s.ActiveBlocks = NewStringSet()
	}
	if s.Responses == nil {
		s.Responses = make(Responses)
	}
	if s.AnsweredQuestions == nil {
		s.AnsweredQuestions = make([]string, 0)
	}
	if s.CompletedBlocks == nil {
		s.CompletedBlocks = NewStringSet()
	}
	if s.DynamicBlocks == nil {
		s.DynamicBlocks = make([]Block, 0)
	}
	if s.NavigationHistory == nil {
		s.NavigationHistory = make([]NavigationEvent, 0)
	}
	if s.BlockActivations == nil {
		s.BlockActivations = make(map[string][]string)
	}
	if s.PendingRemovals == nil {
		s.PendingRemovals = make([]string, 0)
	}
	if s.BlueprintCounters == nil {
		s.BlueprintCounters = make(map[string]int)
	}
	s.Responses.normalize()
	if len(s.Responses) > 0 {
		s.Started = true
	}
}

// Clone возвращает глубокую копию состояния.
func (s *FormState) Clone() *FormState {
	out := *s
	out.ActiveBlocks = s.ActiveBlocks.Clone()
	out.Responses = s.Responses.Clone()
	out.AnsweredQuestions = slices.Clone(s.AnsweredQuestions)
	out.CompletedBlocks = s.CompletedBlocks.Clone()

	out.DynamicBlocks = make([]Block, len(s.DynamicBlocks))
	for i := range s.DynamicBlocks {
		out.DynamicBlocks[i] = s.DynamicBlocks[i].Clone()
	}

	out.NavigationHistory = slices.Clone(s.NavigationHistory)

	out.BlockActivations = make(map[string][]string, len(s.BlockActivations))
	for q, blocks := range s.BlockActivations {
		out.BlockActivations[q] = slices.Clone(blocks)
	}

	out.PendingRemovals = slices.Clone(s.PendingRemovals)

	out.BlueprintCounters = make(map[string]int, len(s.BlueprintCounters))
	for bp, n := range s.BlueprintCounters {
		out.BlueprintCounters[bp] = n
	}

	out.Normalize()
	return &out
}

// DynamicBlock возвращает динамический блок по ID.
func (s *FormState) DynamicBlock(blockID string) *Block {
	for i := range s.DynamicBlocks {
		if s.DynamicBlocks[i].BlockID == blockID {
			return &s.DynamicBlocks[i]
		}
	}
	return nil
}

// IsAnswered проверяет, отмечен ли вопрос как отвеченный.
func (s *FormState) IsAnswered(questionID string) bool {
	return slices.Contains(s.AnsweredQuestions, questionID)
}
