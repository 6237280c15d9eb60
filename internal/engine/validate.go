package engine

import (
	"fmt"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

// Validate выполняет структурную валидацию блоков формы.
//
// Проверяет:
// - Наличие блоков
// - Уникальность ID блоков и вопросов (в пределах всей формы)
// - Наличие placeholder'ов и корректность их типов
// - Наличие и уникальность вариантов select
// - leads_to_placeholder_priority
//
// Висячие ссылки (leads_to, add_block, blockBlueprint) не считаются
// структурной ошибкой: их проверяет CheckReferences.
func Validate(blocks []domain.Block) error {
	if len(blocks) == 0 {
		return ErrEmptyForm
	}

	blockIDs := make(map[string]bool)
	questionIDs := make(map[string]bool)

	for i := range blocks {
		if err := ValidateBlock(&blocks[i], blockIDs, questionIDs); err != nil {
			return err
		}
	}

	return nil
}

// ValidateBlock валидирует один блок.
// blockIDs и questionIDs — уже встреченные ID (для проверки уникальности).
func ValidateBlock(block *domain.Block, blockIDs, questionIDs map[string]bool) error {
	if block.BlockID == "" {
		return NewValidationError("", "", "block_id", "block has empty ID", ErrEmptyBlockID)
	}

	if blockIDs[block.BlockID] {
		return NewValidationError(block.BlockID, "", "block_id",
			fmt.Sprintf("duplicate block ID: %s", block.BlockID), ErrDuplicateBlockID)
	}
	blockIDs[block.BlockID] = true

	if len(block.Questions) == 0 {
		return NewValidationError(block.BlockID, "", "questions",
			"block has no questions", ErrEmptyBlock)
	}

	if block.IsBlueprint() && block.DefaultActive {
		return NewValidationError(block.BlockID, "", "default_active",
			"blueprint cannot be active by default", ErrActiveBlueprint)
	}

	for i := range block.Questions {
		q := &block.Questions[i]

		if q.QuestionID == "" {
			return NewValidationError(block.BlockID, "", "question_id",
				fmt.Sprintf("question %d has empty ID", i), ErrEmptyQuestionID)
		}

		if questionIDs[q.QuestionID] {
			return NewValidationError(block.BlockID, q.QuestionID, "question_id",
				fmt.Sprintf("duplicate question ID: %s", q.QuestionID), ErrDuplicateQuestionID)
		}
		questionIDs[q.QuestionID] = true

		if err := validateQuestion(block.BlockID, q); err != nil {
			return err
		}
	}

	return nil
}

// validateQuestion проверяет placeholder'ы вопроса.
func validateQuestion(blockID string, q *domain.Question) error {
	if len(q.Placeholders) == 0 {
		return NewValidationError(blockID, q.QuestionID, "placeholders",
			"question has no placeholders", ErrNoPlaceholders)
	}

	for _, entry := range q.Placeholders {
		field := "placeholders." + entry.Key

		switch entry.Placeholder.Kind() {
		case domain.PlaceholderSelect:
			if err := validateOptions(blockID, q.QuestionID, field, entry.Placeholder.Select); err != nil {
				return err
			}
		case domain.PlaceholderInput, domain.PlaceholderManager:
			// Нечего проверять структурно
		default:
			return NewValidationError(blockID, q.QuestionID, field,
				"placeholder has no type", domain.ErrInvalidPlaceholder)
		}
	}

	if key := q.LeadsToPlaceholderPriority; key != "" {
		if _, ok := q.Placeholders.Get(key); !ok {
			return NewValidationError(blockID, q.QuestionID, "leads_to_placeholder_priority",
				fmt.Sprintf("priority placeholder not found: %s", key), ErrUnknownPriorityPlaceholder)
		}
	}

	return nil
}

// validateOptions проверяет варианты select-поля.
func validateOptions(blockID, questionID, field string, sel *domain.SelectField) error {
	if len(sel.Options) == 0 {
		return NewValidationError(blockID, questionID, field,
			"select has no options", ErrEmptyOptions)
	}

	seen := make(map[string]bool, len(sel.Options))
	for _, opt := range sel.Options {
		if seen[opt.ID] {
			return NewValidationError(blockID, questionID, field,
				fmt.Sprintf("duplicate option ID: %s", opt.ID), ErrDuplicateOptionID)
		}
		seen[opt.ID] = true
	}

	return nil
}

// CheckReferences возвращает все висячие ссылки формы.
//
// leads_to внутри blueprint'а может ссылаться на вопросы того же blueprint'а.
// Пустой результат означает, что все ссылки разрешимы.
func CheckReferences(blocks []domain.Block) []*ValidationError {
	questions := make(map[string]bool)
	staticBlocks := make(map[string]bool)
	blueprints := make(map[string]bool)

	for i := range blocks {
		b := &blocks[i]
		if b.IsBlueprint() {
			blueprints[b.BlockID] = true
		} else {
			staticBlocks[b.BlockID] = true
		}
		for j := range b.Questions {
			questions[b.Questions[j].QuestionID] = true
		}
	}

	var problems []*ValidationError

	checkLeadsTo := func(blockID, questionID, field, leadsTo string) {
		if leadsTo == "" || domain.IsSentinel(leadsTo) || questions[leadsTo] {
			return
		}
		problems = append(problems, NewValidationError(blockID, questionID, field,
			fmt.Sprintf("leads_to references unknown question: %s", leadsTo), ErrUnknownLeadsTo))
	}

	for i := range blocks {
		b := &blocks[i]
		for j := range b.Questions {
			q := &b.Questions[j]
			for _, entry := range q.Placeholders {
				field := "placeholders." + entry.Key
				p := entry.Placeholder

				switch p.Kind() {
				case domain.PlaceholderSelect:
					for _, opt := range p.Select.Options {
						checkLeadsTo(b.BlockID, q.QuestionID, field+"."+opt.ID, opt.LeadsTo)
						if opt.AddBlock != "" && !staticBlocks[opt.AddBlock] {
							problems = append(problems, NewValidationError(b.BlockID, q.QuestionID, field+"."+opt.ID,
								fmt.Sprintf("add_block references unknown block: %s", opt.AddBlock), ErrUnknownAddBlock))
						}
					}
				case domain.PlaceholderInput:
					checkLeadsTo(b.BlockID, q.QuestionID, field, p.Input.LeadsTo)
				case domain.PlaceholderManager:
					checkLeadsTo(b.BlockID, q.QuestionID, field, p.Manager.LeadsTo)
					if !blueprints[p.Manager.BlueprintID] {
						problems = append(problems, NewValidationError(b.BlockID, q.QuestionID, field,
							fmt.Sprintf("manager references unknown blueprint: %s", p.Manager.BlueprintID), ErrUnknownManagerBlueprint))
					}
				}
			}
		}
	}

	return problems
}
