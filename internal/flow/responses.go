package flow

import (
	"fmt"
	"slices"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/engine"
)

// setResponse записывает ответ и пересчитывает блоки, активированные вопросом.
func (e *Engine) setResponse(act SetResponse) (Result, error) {
	// 1. Вопрос и placeholder
	_, q := e.locate(act.QuestionID)
	if q == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrQuestionNotFound, act.QuestionID)
	}
	p, ok := q.Placeholders.Get(act.Key)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s.%s", ErrPlaceholderNotFound, act.QuestionID, act.Key)
	}
	if !p.RequiresValue() {
		return Result{}, fmt.Errorf("%w: %s.%s", ErrNotAField, act.QuestionID, act.Key)
	}

	// 2. Запись. FirstResponse — только первый ответ сессии, повторные
	// ответы после очистки его не дают.
	first := false
	value := normalizeValue(p, act.Value)
	if value == nil {
		if !e.state.Responses.Has(q.QuestionID, act.Key) {
			return Result{}, nil
		}
		e.deleteResponse(q.QuestionID, act.Key)
	} else {
		e.state.Responses.Set(q.QuestionID, act.Key, value)
		first = !e.state.Started
		e.state.Started = true
	}

	// 3. Активации add_block
	e.syncActivations(q)

	return Result{Changed: true, FirstResponse: first}, nil
}

// normalizeValue приводит значение к хранимой форме: string для одиночных
// полей и []string для multiple. nil — ответ пустой.
func normalizeValue(p domain.Placeholder, v any) any {
	values := domain.ValueStrings(v)
	if len(values) == 0 {
		return nil
	}
	if p.Select != nil && p.Select.Multiple {
		return slices.Compact(values)
	}
	return values[0]
}

func (e *Engine) deleteResponse(questionID, key string) {
	byKey := e.state.Responses[questionID]
	delete(byKey, key)
	if len(byKey) == 0 {
		delete(e.state.Responses, questionID)
	}
}

// syncActivations сравнивает add_block выбранных вариантов с тем, что вопрос
// активировал раньше (через add_block или переходом). Новые блоки
// активируются, остальные освобождаются.
func (e *Engine) syncActivations(q *domain.Question) {
	selected := engine.SelectedAddBlocks(q, e.state.Responses)
	previous := e.state.BlockActivations[q.QuestionID]

	wanted := make([]string, 0, len(selected))
	for _, id := range selected {
		if e.block(id) == nil {
			e.logger.Warn("add_block target not found",
				"question_id", q.QuestionID,
				"block_id", id,
			)
			continue
		}
		wanted = append(wanted, id)
	}

	if len(wanted) == 0 {
		delete(e.state.BlockActivations, q.QuestionID)
	} else {
		e.state.BlockActivations[q.QuestionID] = wanted
	}

	for _, id := range wanted {
		if slices.Contains(previous, id) {
			continue
		}
		if _, err := e.addActiveBlock(id); err != nil {
			e.logger.Warn("add_block activation failed", "block_id", id, "error", err)
		}
	}
	for _, id := range previous {
		if !slices.Contains(wanted, id) {
			e.releaseBlock(id)
		}
	}
}
