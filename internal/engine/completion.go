package engine

import (
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

// Validator — проверка значения input-поля по типу валидации.
type Validator interface {
	Validate(value string, kind domain.ValidationKind) bool
}

// AcceptAll — Validator, принимающий любое непустое значение.
type AcceptAll struct{}

// Validate реализует Validator.
func (AcceptAll) Validate(value string, _ domain.ValidationKind) bool {
	return value != ""
}

// PlaceholderValid проверяет ответ на placeholder.
//
// select: есть хотя бы один выбранный вариант, все выбранные ID существуют,
// у одиночного select выбран ровно один вариант.
// input: непустое значение, прошедшее валидацию.
// MultiBlockManager данных не хранит и всегда валиден.
func PlaceholderValid(p domain.Placeholder, value any, v Validator) bool {
	switch p.Kind() {
	case domain.PlaceholderSelect:
		selected := domain.ValueStrings(value)
		if len(selected) == 0 {
			return false
		}
		if !p.Select.Multiple && len(selected) != 1 {
			return false
		}
		for _, id := range selected {
			if p.Select.Option(id) == nil {
				return false
			}
		}
		return true

	case domain.PlaceholderInput:
		values := domain.ValueStrings(value)
		if len(values) != 1 {
			return false
		}
		if p.Input.Validation == "" {
			return true
		}
		return v.Validate(values[0], p.Input.Validation)

	case domain.PlaceholderManager:
		return true

	default:
		return false
	}
}

// InvalidPlaceholders возвращает ключи обязательных placeholder'ов вопроса
// без валидного ответа, в порядке объявления.
func InvalidPlaceholders(q *domain.Question, responses domain.Responses, v Validator) []string {
	invalid := make([]string, 0)
	for _, entry := range q.Placeholders {
		if !entry.Placeholder.RequiresValue() {
			continue
		}
		value, _ := responses.Get(q.QuestionID, entry.Key)
		if !PlaceholderValid(entry.Placeholder, value, v) {
			invalid = append(invalid, entry.Key)
		}
	}
	return invalid
}

// QuestionComplete проверяет, что все обязательные placeholder'ы вопроса заполнены валидно.
func QuestionComplete(q *domain.Question, responses domain.Responses, v Validator) bool {
	return len(InvalidPlaceholders(q, responses, v)) == 0
}

// CheckBlock вычисляет заполненность блока.
//
// Обходит путь внутри блока от первого вопроса, следуя разрешённым
// переходам, пока переход ведёт в вопрос того же блока. Каждый вопрос
// на пути должен быть заполнен. Вопросы вне пути (другие ветки) не
// учитываются.
func CheckBlock(block *domain.Block, responses domain.Responses, v Validator) bool {
	q := block.FirstQuestion()
	if q == nil {
		return true
	}

	visited := make(map[string]bool, len(block.Questions))
	for q != nil && !visited[q.QuestionID] {
		visited[q.QuestionID] = true

		if !QuestionComplete(q, responses, v) {
			return false
		}

		dest := Resolve(q, responses)
		if dest.IsSentinel() {
			return true
		}
		q = block.Question(dest.QuestionID)
	}

	return true
}

// IncompleteCopies возвращает копии blueprint'а, не прошедшие CheckBlock.
func IncompleteCopies(blueprintID string, dynamic []domain.Block, responses domain.Responses, v Validator) []*domain.Block {
	out := make([]*domain.Block, 0)
	for _, b := range CopiesOf(blueprintID, dynamic) {
		if !CheckBlock(b, responses, v) {
			out = append(out, b)
		}
	}
	return out
}
