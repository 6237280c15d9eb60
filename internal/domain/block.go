package domain

import "strings"

// CopyToken — подстрока в block_id blueprint'а, вместо которой подставляется номер копии.
//
// Пример: blueprint "income_{n}" порождает блоки "income_1", "income_2", ...
const CopyToken = "{n}"

// Block — именованная упорядочиваемая группа вопросов.
//
// Блок бывает статическим (описан в форме) или динамическим
// (создан во время сессии из blueprint'а). Для динамических блоков
// заполнены BlueprintID, CopyNumber и ParentBlockID.
type Block struct {
	// BlockID — уникальный идентификатор блока.
	BlockID string `json:"block_id" yaml:"block_id"`

	// BlockNumber — отображаемый номер блока ("1", "2.1", ...).
	BlockNumber string `json:"block_number,omitempty" yaml:"block_number,omitempty"`

	// Title — заголовок блока.
	Title string `json:"title" yaml:"title"`

	// Priority — порядок обхода активных блоков при next_block (меньше — раньше).
	Priority int `json:"priority" yaml:"priority"`

	// DefaultActive — блок активен с начала сессии.
	DefaultActive bool `json:"default_active,omitempty" yaml:"default_active,omitempty"`

	// Questions — вопросы блока в порядке объявления.
	Questions []Question `json:"questions" yaml:"questions"`

	// BlueprintID — blueprint, из которого создана копия (только для динамических блоков).
	BlueprintID string `json:"blueprint_id,omitempty" yaml:"blueprint_id,omitempty"`

	// CopyNumber — номер копии, начиная с 1 (только для динамических блоков).
	CopyNumber int `json:"copy_number,omitempty" yaml:"copy_number,omitempty"`

	// ParentBlockID — блок, в котором находится вопрос-менеджер этого blueprint'а.
	ParentBlockID string `json:"parent_block_id,omitempty" yaml:"parent_block_id,omitempty"`
}

// IsBlueprint возвращает true, если блок является шаблоном для динамических копий.
// Blueprint никогда сам не бывает активным.
func (b *Block) IsBlueprint() bool {
	return b.BlueprintID == "" && strings.Contains(b.BlockID, CopyToken)
}

// IsDynamic возвращает true для копий, созданных из blueprint'а.
func (b *Block) IsDynamic() bool {
	return b.BlueprintID != ""
}

// FirstQuestion возвращает первый вопрос блока или nil для пустого блока.
func (b *Block) FirstQuestion() *Question {
	if len(b.Questions) == 0 {
		return nil
	}
	return &b.Questions[0]
}

// Question возвращает вопрос блока по ID.
func (b *Block) Question(questionID string) *Question {
	for i := range b.Questions {
		if b.Questions[i].QuestionID == questionID {
			return &b.Questions[i]
		}
	}
	return nil
}

// HasQuestion проверяет, принадлежит ли вопрос блоку.
func (b *Block) HasQuestion(questionID string) bool {
	return b.Question(questionID) != nil
}

// Clone возвращает глубокую копию блока.
func (b *Block) Clone() Block {
	out := *b
	out.Questions = make([]Question, len(b.Questions))
	for i := range b.Questions {
		out.Questions[i] = b.Questions[i].Clone()
	}
	return out
}

// Question — вопрос формы.
//
// Текст вопроса содержит placeholder'ы ({{placeholder1}}), каждый из которых
// описан в Placeholders. QuestionID уникален в пределах снапшота формы.
type Question struct {
	// QuestionID — идентификатор вопроса.
	QuestionID string `json:"question_id" yaml:"question_id"`

	// QuestionNumber — отображаемый номер вопроса.
	QuestionNumber string `json:"question_number,omitempty" yaml:"question_number,omitempty"`

	// BlockID — блок, которому принадлежит вопрос.
	// Заполняется при построении графа и при клонировании blueprint'а.
	BlockID string `json:"block_id,omitempty" yaml:"block_id,omitempty"`

	// QuestionText — текст вопроса с placeholder'ами.
	QuestionText string `json:"question_text" yaml:"question_text"`

	// Placeholders — поля вопроса в порядке объявления.
	Placeholders Placeholders `json:"placeholders" yaml:"placeholders"`

	// LeadsToPlaceholderPriority — ключ placeholder'а, который определяет переход,
	// если на него есть ответ.
	LeadsToPlaceholderPriority string `json:"leads_to_placeholder_priority,omitempty" yaml:"leads_to_placeholder_priority,omitempty"`

	// Inline — вопрос продолжает предложение предыдущего вопроса.
	Inline bool `json:"inline,omitempty" yaml:"inline,omitempty"`

	// QuestionNotes — пояснение под вопросом.
	QuestionNotes string `json:"question_notes,omitempty" yaml:"question_notes,omitempty"`

	// EndOfForm — вопрос завершает форму.
	EndOfForm bool `json:"endOfForm,omitempty" yaml:"endOfForm,omitempty"`

	// SourceQuestionID — ID вопроса blueprint'а, из которого склонирован вопрос копии.
	SourceQuestionID string `json:"source_question_id,omitempty" yaml:"-"`
}

// Clone возвращает глубокую копию вопроса.
func (q *Question) Clone() Question {
	out := *q
	out.Placeholders = q.Placeholders.Clone()
	return out
}

// Manager возвращает MultiBlockManager-поле вопроса, если оно есть.
func (q *Question) Manager() (string, *ManagerField) {
	for _, entry := range q.Placeholders {
		if entry.Placeholder.Manager != nil {
			return entry.Key, entry.Placeholder.Manager
		}
	}
	return "", nil
}

// IsManager возвращает true, если вопрос запускает повторяемую секцию.
func (q *Question) IsManager() bool {
	_, m := q.Manager()
	return m != nil
}
