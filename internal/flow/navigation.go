package flow

import (
	"fmt"
	"slices"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/engine"
)

// navigate реализует переход вперёд от вопроса.
//
// Алгоритм:
//  1. Проверка остановки и существования вопроса From
//  2. Валидация ответов From (невалидные — навигация не выполняется, не ошибка)
//  3. Для вопроса-менеджера — проверка незаполненных копий
//  4. Вычисление Destination (LeadsTo или резолвер)
//  5. Разрешение Destination в адрес вопроса
//  6. Переход
func (e *Engine) navigate(act Navigate) (Result, error) {
	// 1. Остановка и From
	if e.state.FlowStopped {
		return Result{}, ErrFlowStopped
	}

	fromID := act.From
	if fromID == "" {
		fromID = e.state.ActiveQuestion.QuestionID
	}
	fromBlock, fromQ := e.locate(fromID)
	if fromQ == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrQuestionNotFound, fromID)
	}

	// 2. Валидация
	if invalid := engine.InvalidPlaceholders(fromQ, e.state.Responses, e.validator); len(invalid) > 0 {
		return Result{Invalid: invalid}, nil
	}

	// 3. Повторяемая секция
	if _, m := fromQ.Manager(); m != nil {
		incomplete := engine.IncompleteCopies(m.BlueprintID, e.state.DynamicBlocks, e.state.Responses, e.validator)
		if len(incomplete) > 0 {
			ids := make([]string, len(incomplete))
			for i, b := range incomplete {
				ids[i] = b.BlockID
			}
			return Result{Incomplete: ids}, fmt.Errorf("%w: %v", ErrIncompleteInstances, ids)
		}
	}

	// 4. Destination
	var dest domain.Destination
	if act.LeadsTo != "" {
		dest = domain.DestinationFor(act.LeadsTo)
	} else {
		dest = engine.Resolve(fromQ, e.state.Responses)
	}

	// 5. Адрес вопроса
	e.markAnswered(fromQ.QuestionID)
	target := e.resolveTarget(fromBlock, fromQ, dest)

	// 6. Переход
	e.moveTo(fromQ, target, dest.String(), false)

	return Result{
		Changed:   true,
		EndOfForm: e.isEndOfForm(target),
	}, nil
}

// resolveTarget превращает Destination в адрес вопроса.
// Может пометить блок From завершённым и активировать целевой блок
// (активация записывается в BlockActivations вопроса From).
func (e *Engine) resolveTarget(fromBlock *domain.Block, fromQ *domain.Question, dest domain.Destination) domain.QuestionRef {
	switch dest.Sentinel {
	case domain.SentinelStopFlow:
		e.state.FlowStopped = true
		return domain.QuestionRef{BlockID: domain.StopFlowBlockID, QuestionID: domain.StopFlowQuestionID}

	case domain.SentinelEndOfSubflow:
		return e.leaveBlock(fromBlock)

	case domain.SentinelNextBlock:
		return e.leaveBlock(fromBlock)
	}

	// Конкретный вопрос
	block, q := e.locate(dest.QuestionID)
	if q == nil {
		e.logger.Warn("unresolvable destination, falling back to next_block",
			"from", fromQ.QuestionID,
			"leads_to", dest.QuestionID,
		)
		return e.leaveBlock(fromBlock)
	}

	// Блок, открытый переходом, числится за вопросом From: изменение его
	// ответа освобождает блок так же, как снятие add_block.
	if !e.state.ActiveBlocks.Has(block.BlockID) || slices.Contains(e.state.PendingRemovals, block.BlockID) {
		if _, err := e.addActiveBlock(block.BlockID); err == nil {
			e.recordActivation(fromQ.QuestionID, block.BlockID)
		}
	}
	return domain.QuestionRef{BlockID: block.BlockID, QuestionID: q.QuestionID}
}

// leaveBlock помечает блок завершённым и возвращает, куда идти дальше.
//
// Из копии blueprint'а — к вопросу-менеджеру. Из статического блока —
// обход next_block, а если блоков не осталось — конец формы.
func (e *Engine) leaveBlock(from *domain.Block) domain.QuestionRef {
	e.state.CompletedBlocks.Add(from.BlockID)

	if from.IsDynamic() {
		if mq := e.graph.ManagerQuestion(from.BlueprintID); mq != nil {
			return domain.QuestionRef{BlockID: mq.BlockID, QuestionID: mq.QuestionID}
		}
		e.logger.Warn("manager question not found for copy", "block_id", from.BlockID, "blueprint_id", from.BlueprintID)
	}

	next := e.graph.NextBlock(e.state.ActiveBlocks, e.state.CompletedBlocks, from.BlockID)
	if next == nil {
		return e.graph.EndOfForm()
	}
	return domain.QuestionRef{BlockID: next.BlockID, QuestionID: next.FirstQuestion().QuestionID}
}

// moveTo делает вопрос активным и пишет событие в журнал.
func (e *Engine) moveTo(from *domain.Question, target domain.QuestionRef, leadsTo string, back bool) {
	event := domain.NavigationEvent{
		From:    e.state.ActiveQuestion,
		To:      target,
		LeadsTo: leadsTo,
		Back:    back,
		At:      e.now(),
	}
	if from != nil {
		event.From = domain.QuestionRef{BlockID: from.BlockID, QuestionID: from.QuestionID}
	}

	e.state.NavigationHistory = append(e.state.NavigationHistory, event)
	e.state.ActiveQuestion = target

	e.applyPendingRemovals()

	if e.isEndOfForm(target) {
		e.state.AllBlocksCompleted = e.allBlocksCompleted()
	}
}

// allBlocksCompleted — все активные блоки завершены.
// Блок с вопросом "конец формы" не учитывается: из него не уходят.
func (e *Engine) allBlocksCompleted() bool {
	endBlock := e.graph.EndOfForm().BlockID
	for id := range e.state.ActiveBlocks {
		if id == endBlock {
			continue
		}
		if !e.state.CompletedBlocks.Has(id) {
			return false
		}
	}
	return true
}

// markAnswered добавляет вопрос в answeredQuestions, сохраняя исходную позицию.
func (e *Engine) markAnswered(questionID string) {
	if !slices.Contains(e.state.AnsweredQuestions, questionID) {
		e.state.AnsweredQuestions = append(e.state.AnsweredQuestions, questionID)
	}
}

// goBack возвращает к предыдущему вопросу в порядке ответов.
//
//   - текущий вопрос найден на позиции > 0 — предыдущий в порядке ответов;
//   - не найден — последний отвеченный;
//   - на позиции 0 — последний отвеченный только при WrapBack, иначе no-op;
//   - пустая история — no-op.
func (e *Engine) goBack() (Result, error) {
	answered := e.state.AnsweredQuestions
	if len(answered) == 0 {
		return Result{}, nil
	}

	var targetID string
	switch idx := slices.Index(answered, e.state.ActiveQuestion.QuestionID); {
	case idx > 0:
		targetID = answered[idx-1]
	case idx < 0:
		targetID = answered[len(answered)-1]
	case e.wrapBack:
		targetID = answered[len(answered)-1]
	default:
		return Result{}, nil
	}

	block, q := e.locate(targetID)
	if q == nil {
		e.logger.Warn("back navigation aborted: block not found",
			"question_id", targetID,
		)
		return Result{Aborted: true}, nil
	}

	e.state.FlowStopped = false
	e.moveTo(nil, domain.QuestionRef{BlockID: block.BlockID, QuestionID: q.QuestionID}, "", true)
	return Result{Changed: true}, nil
}

// goToQuestion переходит к вопросу по адресу.
// Устаревший адрес — ошибка, состояние не меняется.
func (e *Engine) goToQuestion(act GoToQuestion) (Result, error) {
	block := e.block(act.BlockID)
	if block == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrBlockNotFound, act.BlockID)
	}
	if !e.state.ActiveBlocks.Has(block.BlockID) {
		return Result{}, fmt.Errorf("%w: %s", ErrBlockNotActive, act.BlockID)
	}
	q := block.Question(act.QuestionID)
	if q == nil {
		return Result{}, fmt.Errorf("%w: %s/%s", ErrQuestionNotFound, act.BlockID, act.QuestionID)
	}

	e.state.FlowStopped = false
	e.moveTo(nil, domain.QuestionRef{BlockID: block.BlockID, QuestionID: q.QuestionID}, "", act.IsBack)
	return Result{Changed: true, EndOfForm: e.isEndOfForm(e.state.ActiveQuestion)}, nil
}
