package flow

import (
	"fmt"
	"slices"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/engine"
)

// addActiveBlock активирует блок и отменяет его отложенное удаление.
func (e *Engine) addActiveBlock(blockID string) (Result, error) {
	if e.block(blockID) == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
	}

	changed := e.state.ActiveBlocks.Add(blockID)
	if i := slices.Index(e.state.PendingRemovals, blockID); i >= 0 {
		e.state.PendingRemovals = slices.Delete(e.state.PendingRemovals, i, i+1)
		changed = true
	}
	return Result{Changed: changed}, nil
}

// removeActiveBlock деактивирует блок.
// Если текущий вопрос внутри блока, удаление откладывается до следующей навигации.
func (e *Engine) removeActiveBlock(blockID string) (Result, error) {
	if e.block(blockID) == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
	}
	if !e.state.ActiveBlocks.Has(blockID) {
		return Result{}, nil
	}

	if e.state.ActiveQuestion.BlockID == blockID {
		if slices.Contains(e.state.PendingRemovals, blockID) {
			return Result{Deferred: true}, nil
		}
		e.state.PendingRemovals = append(e.state.PendingRemovals, blockID)
		return Result{Changed: true, Deferred: true}, nil
	}

	e.state.ActiveBlocks.Remove(blockID)
	return Result{Changed: true}, nil
}

// applyPendingRemovals удаляет отложенные блоки, из которых пользователь ушёл.
func (e *Engine) applyPendingRemovals() {
	if len(e.state.PendingRemovals) == 0 {
		return
	}

	kept := e.state.PendingRemovals[:0]
	for _, id := range e.state.PendingRemovals {
		if id == e.state.ActiveQuestion.BlockID {
			kept = append(kept, id)
			continue
		}
		e.state.ActiveBlocks.Remove(id)
	}
	e.state.PendingRemovals = kept
}

// markCompleted помечает блок завершённым.
func (e *Engine) markCompleted(blockID string) (Result, error) {
	if e.block(blockID) == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
	}
	return Result{Changed: e.state.CompletedBlocks.Add(blockID)}, nil
}

// unmarkCompleted снимает отметку о завершении.
func (e *Engine) unmarkCompleted(blockID string) (Result, error) {
	if e.block(blockID) == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
	}
	return Result{Changed: e.state.CompletedBlocks.Remove(blockID)}, nil
}

// createDynamicBlock создаёт копию blueprint'а.
//
// Номер копии не переиспользуется. Копия становится активной, а завершённый
// родительский блок (с вопросом-менеджером) перестаёт быть завершённым.
// При ошибке ничего не регистрируется.
func (e *Engine) createDynamicBlock(blueprintID string) (Result, error) {
	bp := e.graph.Blueprint(blueprintID)
	if bp == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownBlueprint, blueprintID)
	}

	// 1. Номер копии
	n := engine.NextCopyNumber(blueprintID, e.state.BlueprintCounters[blueprintID], e.state.DynamicBlocks)

	// 2. Клонирование
	parent := e.graph.ManagerBlockID(blueprintID)
	block, err := engine.Instantiate(bp, n, parent)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnknownBlueprint, err)
	}
	if e.block(block.BlockID) != nil {
		return Result{}, fmt.Errorf("flow: block %s already exists", block.BlockID)
	}

	// 3. Регистрация
	e.state.DynamicBlocks = append(e.state.DynamicBlocks, block)
	e.state.BlueprintCounters[blueprintID] = n
	e.state.ActiveBlocks.Add(block.BlockID)
	if parent != "" {
		e.state.CompletedBlocks.Remove(parent)
	}

	e.logger.Debug("dynamic block created",
		"block_id", block.BlockID,
		"blueprint_id", blueprintID,
		"copy_number", n,
	)

	return Result{Changed: true, BlockID: block.BlockID}, nil
}

// deleteDynamicBlock удаляет копию и все её ответы.
// Если пользователь внутри копии, он возвращается к вопросу-менеджеру.
func (e *Engine) deleteDynamicBlock(blockID string) (Result, error) {
	idx := slices.IndexFunc(e.state.DynamicBlocks, func(b domain.Block) bool {
		return b.BlockID == blockID
	})
	if idx < 0 {
		if e.graph.Block(blockID) != nil {
			return Result{}, fmt.Errorf("%w: %s", ErrNotDynamicBlock, blockID)
		}
		return Result{}, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
	}
	block := e.state.DynamicBlocks[idx]

	// 1. Ответы, отметки и активации вопросов копии
	questionIDs := make([]string, len(block.Questions))
	for i := range block.Questions {
		questionIDs[i] = block.Questions[i].QuestionID
	}
	activated := make([]string, 0)
	for _, qid := range questionIDs {
		delete(e.state.Responses, qid)
		activated = append(activated, e.state.BlockActivations[qid]...)
		delete(e.state.BlockActivations, qid)
	}
	e.state.AnsweredQuestions = slices.DeleteFunc(e.state.AnsweredQuestions, func(qid string) bool {
		return slices.Contains(questionIDs, qid)
	})

	// 2. Сам блок
	e.state.DynamicBlocks = slices.Delete(e.state.DynamicBlocks, idx, idx+1)
	e.state.ActiveBlocks.Remove(blockID)
	e.state.CompletedBlocks.Remove(blockID)
	e.state.PendingRemovals = slices.DeleteFunc(e.state.PendingRemovals, func(id string) bool {
		return id == blockID
	})

	// 3. Блоки, которые активировала только эта копия
	for _, id := range activated {
		e.releaseBlock(id)
	}

	// 4. Пользователь был внутри копии
	if e.state.ActiveQuestion.BlockID == blockID {
		target := e.graph.FirstQuestion()
		if mq := e.graph.ManagerQuestion(block.BlueprintID); mq != nil {
			target = domain.QuestionRef{BlockID: mq.BlockID, QuestionID: mq.QuestionID}
		}
		e.moveTo(nil, target, "", true)
	}

	return Result{Changed: true}, nil
}

// releaseBlock деактивирует блок, если его больше не активирует ни один ответ.
// Блоки, активные по умолчанию, не трогаются.
func (e *Engine) releaseBlock(blockID string) {
	if b := e.graph.Block(blockID); b != nil && b.DefaultActive {
		return
	}
	for _, blocks := range e.state.BlockActivations {
		if slices.Contains(blocks, blockID) {
			return
		}
	}
	if _, err := e.removeActiveBlock(blockID); err != nil {
		e.logger.Debug("release block skipped", "block_id", blockID, "error", err)
	}
}

// recordActivation записывает блок за вопросом, который его активировал.
func (e *Engine) recordActivation(questionID, blockID string) {
	blocks := e.state.BlockActivations[questionID]
	if !slices.Contains(blocks, blockID) {
		e.state.BlockActivations[questionID] = append(blocks, blockID)
	}
}
