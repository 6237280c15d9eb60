package engine

import (
	"sort"
	"strings"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

// FieldKey возвращает ключ поля записи повторяемой секции.
//
// Из ID вопроса blueprint'а убирается токен {n} вместе с соседним
// разделителем: "income_{n}_amount" + "placeholder1" → "income_amount.placeholder1".
func FieldKey(sourceQuestionID, placeholderKey string) string {
	base := strings.ReplaceAll(sourceQuestionID, domain.CopyToken, "")
	for strings.Contains(base, "__") {
		base = strings.ReplaceAll(base, "__", "_")
	}
	base = strings.Trim(base, "_-.")
	return base + "." + placeholderKey
}

// RepeatingGroups сводит ответы копий в записи, сгруппированные по blueprint'у.
//
// Записи внутри группы упорядочены по номеру копии. Placeholder'ы без
// ответа в запись не попадают.
func RepeatingGroups(dynamic []domain.Block, responses domain.Responses) map[string][]domain.RepeatingGroupEntry {
	groups := make(map[string][]domain.RepeatingGroupEntry)

	for i := range dynamic {
		b := &dynamic[i]
		if !b.IsDynamic() {
			continue
		}

		entry := domain.RepeatingGroupEntry{
			ID:          b.BlockID,
			BlueprintID: b.BlueprintID,
			CopyNumber:  b.CopyNumber,
			Fields:      make(map[string]any),
		}

		for j := range b.Questions {
			q := &b.Questions[j]
			source := q.SourceQuestionID
			if source == "" {
				source = q.QuestionID
			}
			for _, key := range q.Placeholders.Keys() {
				value, ok := responses.Get(q.QuestionID, key)
				if !ok || len(domain.ValueStrings(value)) == 0 {
					continue
				}
				entry.Fields[FieldKey(source, key)] = value
			}
		}

		groups[b.BlueprintID] = append(groups[b.BlueprintID], entry)
	}

	for bp := range groups {
		entries := groups[bp]
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].CopyNumber < entries[j].CopyNumber
		})
	}

	return groups
}
