package engine

import "errors"

// Ошибки валидации определения формы.
var (
	// ErrEmptyForm — форма не содержит блоков.
	ErrEmptyForm = errors.New("form has no blocks")

	// ErrEmptyBlockID — блок не имеет ID.
	ErrEmptyBlockID = errors.New("block has empty ID")

	// ErrDuplicateBlockID — несколько блоков с одинаковым ID.
	ErrDuplicateBlockID = errors.New("duplicate block ID")

	// ErrEmptyBlock — блок не содержит вопросов.
	ErrEmptyBlock = errors.New("block has no questions")

	// ErrActiveBlueprint — blueprint помечен как default_active.
	ErrActiveBlueprint = errors.New("blueprint cannot be active by default")

	// ErrEmptyQuestionID — вопрос не имеет ID.
	ErrEmptyQuestionID = errors.New("question has empty ID")

	// ErrDuplicateQuestionID — несколько вопросов с одинаковым ID.
	ErrDuplicateQuestionID = errors.New("duplicate question ID")

	// ErrNoPlaceholders — вопрос не содержит placeholder'ов.
	ErrNoPlaceholders = errors.New("question has no placeholders")

	// ErrEmptyOptions — select без вариантов.
	ErrEmptyOptions = errors.New("select has no options")

	// ErrDuplicateOptionID — несколько вариантов с одинаковым ID.
	ErrDuplicateOptionID = errors.New("duplicate option ID")

	// ErrUnknownPriorityPlaceholder — leads_to_placeholder_priority ссылается на несуществующий ключ.
	ErrUnknownPriorityPlaceholder = errors.New("priority placeholder not found")
)

// Ошибки ссылок (не мешают построению графа, см. CheckReferences).
var (
	// ErrUnknownLeadsTo — leads_to ссылается на несуществующий вопрос.
	ErrUnknownLeadsTo = errors.New("leads_to references unknown question")

	// ErrUnknownAddBlock — add_block ссылается на несуществующий блок.
	ErrUnknownAddBlock = errors.New("add_block references unknown block")

	// ErrUnknownManagerBlueprint — MultiBlockManager ссылается на несуществующий blueprint.
	ErrUnknownManagerBlueprint = errors.New("manager references unknown blueprint")
)

// Ошибки создания копий.
var (
	// ErrUnknownBlueprint — blueprint не найден.
	ErrUnknownBlueprint = errors.New("unknown blueprint")

	// ErrInvalidCopyNumber — номер копии меньше 1.
	ErrInvalidCopyNumber = errors.New("copy number must be positive")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	BlockID    string // ID блока, где произошла ошибка
	QuestionID string // ID вопроса (если ошибка на уровне вопроса)
	Field      string // поле, вызвавшее ошибку
	Message    string // описание ошибки
	Err        error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	switch {
	case e.QuestionID != "":
		return "question " + e.QuestionID + ": " + e.Message
	case e.BlockID != "":
		return "block " + e.BlockID + ": " + e.Message
	default:
		return e.Message
	}
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(blockID, questionID, field, message string, err error) *ValidationError {
	return &ValidationError{
		BlockID:    blockID,
		QuestionID: questionID,
		Field:      field,
		Message:    message,
		Err:        err,
	}
}
