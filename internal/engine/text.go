package engine

import (
	"regexp"
	"strings"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

// placeholderRef — ссылка на placeholder в тексте вопроса: {{key}}.
var placeholderRef = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_\-]+)\s*\}\}`)

// EmptyAnswer — подстановка для placeholder'а без ответа.
const EmptyAnswer = "____"

// RenderText подставляет ответы в текст вопроса.
//
// select → подписи выбранных вариантов через ", ";
// input → значение; MultiBlockManager → add_block_label.
// Неизвестные ключи остаются как есть.
func RenderText(q *domain.Question, responses domain.Responses) string {
	return placeholderRef.ReplaceAllStringFunc(q.QuestionText, func(match string) string {
		key := placeholderRef.FindStringSubmatch(match)[1]

		p, ok := q.Placeholders.Get(key)
		if !ok {
			return match
		}

		value, _ := responses.Get(q.QuestionID, key)
		values := domain.ValueStrings(value)

		switch p.Kind() {
		case domain.PlaceholderSelect:
			labels := make([]string, 0, len(values))
			for _, id := range values {
				if opt := p.Select.Option(id); opt != nil {
					labels = append(labels, opt.Label)
				}
			}
			if len(labels) == 0 {
				return EmptyAnswer
			}
			return strings.Join(labels, ", ")

		case domain.PlaceholderInput:
			if len(values) == 0 {
				return EmptyAnswer
			}
			return values[0]

		case domain.PlaceholderManager:
			return p.Manager.AddBlockLabel

		default:
			return match
		}
	})
}
