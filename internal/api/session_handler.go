package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/engine"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/flow"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/session"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/telemetry"
)

// StartSession открывает сессию (новую или по коду возобновления).
// POST /api/v1/sessions
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	sess, err := h.sessions.Start(r.Context(), req.ResumeCode)
	if HandleError(w, h.logger, err) {
		return
	}

	Created(w, h.sessionResponse(sess))
}

// GetSession возвращает состояние сессии, текущий вопрос и прогресс.
// GET /api/v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	Success(w, h.sessionResponse(sess))
}

// GetResponses возвращает ответы на вопрос.
// GET /api/v1/sessions/{id}/responses/{qid}
func (h *Handler) GetResponses(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	qid := r.PathValue("qid")
	if _, found := sess.Engine.Question(qid); !found {
		NotFound(w, "question not found")
		return
	}

	Success(w, ResponsesResponse{QuestionID: qid, Values: sess.Engine.GetResponses(qid)})
}

// SetResponse записывает ответ на placeholder.
// PUT /api/v1/sessions/{id}/responses/{qid}
func (h *Handler) SetResponse(w http.ResponseWriter, r *http.Request) {
	var req SetResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Key == "" {
		BadRequest(w, "key is required")
		return
	}

	h.dispatch(w, r, flow.SetResponse{
		QuestionID: r.PathValue("qid"),
		Key:        req.Key,
		Value:      req.Value,
	})
}

// Next переходит вперёд.
// POST /api/v1/sessions/{id}/next
//
// Невалидные ответы — 200 с полем invalid; навигация не выполняется.
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	h.dispatch(w, r, flow.Navigate{From: req.From, LeadsTo: req.LeadsTo})
}

// Back возвращает к предыдущему отвеченному вопросу.
// POST /api/v1/sessions/{id}/back
func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, flow.GoBack{})
}

// GoTo переходит к вопросу по адресу.
// POST /api/v1/sessions/{id}/goto
func (h *Handler) GoTo(w http.ResponseWriter, r *http.Request) {
	var req GoToRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.BlockID == "" || req.QuestionID == "" {
		BadRequest(w, "block_id and question_id are required")
		return
	}
	h.dispatch(w, r, flow.GoToQuestion{BlockID: req.BlockID, QuestionID: req.QuestionID, IsBack: req.IsBack})
}

// ActivateBlock активирует блок.
// POST /api/v1/sessions/{id}/blocks/{bid}/activate
func (h *Handler) ActivateBlock(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, flow.AddActiveBlock{BlockID: r.PathValue("bid")})
}

// DeactivateBlock деактивирует блок (отложенно, если пользователь внутри).
// DELETE /api/v1/sessions/{id}/blocks/{bid}/activate
func (h *Handler) DeactivateBlock(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, flow.RemoveActiveBlock{BlockID: r.PathValue("bid")})
}

// GetBlockStatus возвращает активность и завершённость блока.
// GET /api/v1/sessions/{id}/blocks/{bid}/completed
func (h *Handler) GetBlockStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	bid := r.PathValue("bid")
	if !blockExists(sess, bid) {
		NotFound(w, "block not found")
		return
	}

	Success(w, BlockStatusResponse{
		BlockID:   bid,
		Active:    sess.Engine.IsActive(bid),
		Completed: sess.Engine.IsBlockCompleted(bid),
	})
}

// MarkBlockCompleted помечает блок завершённым.
// PUT /api/v1/sessions/{id}/blocks/{bid}/completed
func (h *Handler) MarkBlockCompleted(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, flow.MarkBlockCompleted{BlockID: r.PathValue("bid")})
}

// UnmarkBlockCompleted снимает отметку о завершении.
// DELETE /api/v1/sessions/{id}/blocks/{bid}/completed
func (h *Handler) UnmarkBlockCompleted(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, flow.RemoveBlockFromCompleted{BlockID: r.PathValue("bid")})
}

// CreateDynamicBlock создаёт копию blueprint'а.
// POST /api/v1/sessions/{id}/dynamic-blocks
func (h *Handler) CreateDynamicBlock(w http.ResponseWriter, r *http.Request) {
	var req CreateDynamicBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.BlueprintID == "" {
		BadRequest(w, "blueprint_id is required")
		return
	}

	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	res, err := h.sessions.Dispatch(r.Context(), id, flow.CreateDynamicBlock{BlueprintID: req.BlueprintID})
	if HandleError(w, h.logger, err) {
		return
	}
	Created(w, ActionFromResult(res))
}

// DeleteDynamicBlock удаляет копию вместе с ответами.
// DELETE /api/v1/sessions/{id}/dynamic-blocks/{bid}
func (h *Handler) DeleteDynamicBlock(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, flow.DeleteDynamicBlock{BlockID: r.PathValue("bid")})
}

// GetIncompleteBlocks возвращает незаполненные копии blueprint'а.
// GET /api/v1/sessions/{id}/blueprints/{bp}/incomplete
func (h *Handler) GetIncompleteBlocks(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	bp := r.PathValue("bp")
	if sess.Engine.Graph().Blueprint(bp) == nil {
		NotFound(w, "blueprint not found")
		return
	}

	blocks := sess.Engine.GetIncompleteBlocks(bp)
	ids := make([]string, len(blocks))
	for i := range blocks {
		ids[i] = blocks[i].BlockID
	}

	Success(w, IncompleteBlocksResponse{BlueprintID: bp, BlockIDs: ids})
}

// GetProgress возвращает прогресс анкеты.
// GET /api/v1/sessions/{id}/progress
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	progress := sess.Engine.GetProgress()
	Success(w, ProgressResponse{Progress: progress, EndOfForm: progress == 100 && isEndOfForm(sess)})
}

// Reset начинает анкету заново.
// POST /api/v1/sessions/{id}/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, flow.Reset{})
}

// Submit отправляет анкету.
// POST /api/v1/sessions/{id}/submit
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sub, err := h.sessions.Submit(r.Context(), id)
	if HandleError(w, telemetry.FromContext(r.Context()), err) {
		return
	}

	Created(w, SubmissionFromDomain(sub))
}

// SaveForResume сохраняет состояние и выдаёт код возобновления.
// POST /api/v1/sessions/{id}/resume
func (h *Handler) SaveForResume(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	code, err := h.sessions.SaveForResume(r.Context(), id)
	if HandleError(w, telemetry.FromContext(r.Context()), err) {
		return
	}

	Created(w, ResumeResponse{Code: code})
}

// GetSubmission возвращает отправленную анкету.
// GET /api/v1/submissions/{id}
func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	if h.submissions == nil {
		HandleError(w, h.logger, session.ErrStoreUnavailable)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid submission id")
		return
	}

	sub, err := h.submissions.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err) {
		return
	}

	Success(w, SubmissionFromDomain(sub))
}

// dispatch применяет действие к сессии из пути и отвечает ActionResponse.
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, a flow.Action) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	res, err := h.sessions.Dispatch(r.Context(), id, a)
	if HandleError(w, telemetry.FromContext(r.Context()), err) {
		return
	}

	Success(w, ActionFromResult(res))
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return nil, false
	}

	sess, err := h.sessions.Get(id)
	if HandleError(w, h.logger, err) {
		return nil, false
	}
	return sess, true
}

// sessionResponse собирает SessionResponse из снапшота.
func (h *Handler) sessionResponse(sess *session.Session) SessionResponse {
	info := sess.Info()
	state := sess.Engine.Snapshot()
	ref, q := sess.Engine.ActiveQuestion()

	resp := SessionResponse{
		ID:                 info.ID,
		FormSlug:           info.FormSlug,
		FormVersion:        info.FormVersion,
		Status:             info.Status,
		ResumeCode:         info.ResumeCode,
		Version:            state.Version,
		ActiveQuestion:     ref,
		Progress:           sess.Engine.GetProgress(),
		ActiveBlocks:       state.ActiveBlocks.Sorted(),
		CompletedBlocks:    state.CompletedBlocks.Sorted(),
		AnsweredQuestions:  state.AnsweredQuestions,
		FlowStopped:        state.FlowStopped,
		EndOfForm:          isEndOfForm(sess),
		AllBlocksCompleted: state.AllBlocksCompleted,
		CreatedAt:          info.CreatedAt,
	}
	if q != nil {
		qr := h.questionResponse(q, state.Responses)
		resp.Question = &qr
	}
	return resp
}

// questionResponse очищает тексты вопроса перед передачей рендеру.
func (h *Handler) questionResponse(q *domain.Question, responses domain.Responses) QuestionResponse {
	return QuestionResponse{
		QuestionID:     q.QuestionID,
		BlockID:        q.BlockID,
		QuestionNumber: q.QuestionNumber,
		QuestionText:   h.sanitizer.Sanitize(q.QuestionText),
		RenderedText:   h.sanitizer.Sanitize(engine.RenderText(q, responses)),
		QuestionNotes:  h.sanitizer.Sanitize(q.QuestionNotes),
		Inline:         q.Inline,
		EndOfForm:      q.EndOfForm,
		Placeholders:   q.Placeholders,
		Responses:      responses[q.QuestionID],
	}
}

func isEndOfForm(sess *session.Session) bool {
	ref, _ := sess.Engine.ActiveQuestion()
	return ref == sess.Engine.Graph().EndOfForm() || ref.QuestionID == domain.EndOfFormQuestionID
}

func blockExists(sess *session.Session, blockID string) bool {
	if b := sess.Engine.Graph().Block(blockID); b != nil && !b.IsBlueprint() {
		return true
	}
	return sess.Engine.Snapshot().DynamicBlock(blockID) != nil
}

// decodeOptional читает JSON-тело, допуская пустое.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	BadRequest(w, "invalid request body: "+strings.TrimSpace(err.Error()))
	return false
}
