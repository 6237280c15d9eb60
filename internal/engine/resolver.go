package engine

import (
	"slices"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

// Resolve — Transition Resolver.
//
// Алгоритм:
//  1. Если leads_to_placeholder_priority указывает на placeholder с ответом
//     и он даёт переход — используется он.
//  2. Иначе placeholder'ы перебираются в порядке объявления; побеждает первый,
//     у которого есть ответ и разрешимый leads_to.
//  3. Иначе — next_block.
//
// MultiBlockManager не хранит данных: его leads_to разрешим без ответа.
// Resolve не проверяет, существует ли целевой вопрос.
func Resolve(q *domain.Question, responses domain.Responses) domain.Destination {
	// 1. Приоритетный placeholder
	if key := q.LeadsToPlaceholderPriority; key != "" {
		if p, ok := q.Placeholders.Get(key); ok {
			value, answered := responses.Get(q.QuestionID, key)
			if answered {
				if leadsTo, ok := placeholderLeadsTo(p, value); ok {
					return domain.DestinationFor(leadsTo)
				}
			}
		}
	}

	// 2. Первый placeholder с ответом и переходом
	for _, entry := range q.Placeholders {
		value, answered := responses.Get(q.QuestionID, entry.Key)
		if !answered && entry.Placeholder.Kind() != domain.PlaceholderManager {
			continue
		}
		if leadsTo, ok := placeholderLeadsTo(entry.Placeholder, value); ok {
			return domain.DestinationFor(leadsTo)
		}
	}

	// 3. По умолчанию
	return domain.Destination{Sentinel: domain.SentinelNextBlock}
}

// placeholderLeadsTo возвращает leads_to placeholder'а для данного значения.
func placeholderLeadsTo(p domain.Placeholder, value any) (string, bool) {
	switch p.Kind() {
	case domain.PlaceholderSelect:
		// Для multiple побеждает первый выбранный вариант (в порядке вариантов) с leads_to
		selected := domain.ValueStrings(value)
		for _, opt := range p.Select.Options {
			if opt.LeadsTo != "" && slices.Contains(selected, opt.ID) {
				return opt.LeadsTo, true
			}
		}
		return "", false

	case domain.PlaceholderInput:
		if len(domain.ValueStrings(value)) == 0 || p.Input.LeadsTo == "" {
			return "", false
		}
		return p.Input.LeadsTo, true

	case domain.PlaceholderManager:
		if p.Manager.LeadsTo == "" {
			return "", false
		}
		return p.Manager.LeadsTo, true

	default:
		return "", false
	}
}

// SelectedAddBlocks возвращает блоки из add_block выбранных вариантов вопроса
// в порядке объявления placeholder'ов и вариантов.
func SelectedAddBlocks(q *domain.Question, responses domain.Responses) []string {
	out := make([]string, 0)
	for _, entry := range q.Placeholders {
		if entry.Placeholder.Select == nil {
			continue
		}
		value, ok := responses.Get(q.QuestionID, entry.Key)
		if !ok {
			continue
		}
		selected := domain.ValueStrings(value)
		for _, opt := range entry.Placeholder.Select.Options {
			if opt.AddBlock != "" && slices.Contains(selected, opt.ID) && !slices.Contains(out, opt.AddBlock) {
				out = append(out, opt.AddBlock)
			}
		}
	}
	return out
}
