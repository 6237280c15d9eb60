package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/flow"
)

// Session DTOs

// StartSessionRequest — запрос на открытие сессии.
type StartSessionRequest struct {
	// ResumeCode — код возобновления; пустой — новая сессия.
	ResumeCode string `json:"resume_code,omitempty"`
}

// SessionResponse — состояние сессии для рендера.
type SessionResponse struct {
	ID          uuid.UUID            `json:"id"`
	FormSlug    string               `json:"form_slug"`
	FormVersion int                  `json:"form_version"`
	Status      domain.SessionStatus `json:"status"`
	ResumeCode  string               `json:"resume_code,omitempty"`

	Version        int64              `json:"version"`
	ActiveQuestion domain.QuestionRef `json:"active_question"`
	Question       *QuestionResponse  `json:"question,omitempty"`
	Progress       int                `json:"progress"`

	ActiveBlocks       []string `json:"active_blocks"`
	CompletedBlocks    []string `json:"completed_blocks"`
	AnsweredQuestions  []string `json:"answered_questions"`
	FlowStopped        bool     `json:"flow_stopped,omitempty"`
	EndOfForm          bool     `json:"end_of_form,omitempty"`
	AllBlocksCompleted bool     `json:"all_blocks_completed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// QuestionResponse — вопрос для рендера.
type QuestionResponse struct {
	QuestionID     string `json:"question_id"`
	BlockID        string `json:"block_id"`
	QuestionNumber string `json:"question_number,omitempty"`

	// QuestionText — текст с placeholder'ами ({{key}}), очищенный от опасной разметки.
	QuestionText string `json:"question_text"`

	// RenderedText — текст с подставленными ответами.
	RenderedText string `json:"rendered_text"`

	QuestionNotes string              `json:"question_notes,omitempty"`
	Inline        bool                `json:"inline,omitempty"`
	EndOfForm     bool                `json:"end_of_form,omitempty"`
	Placeholders  domain.Placeholders `json:"placeholders"`
	Responses     map[string]any      `json:"responses,omitempty"`
}

// Response DTOs

// SetResponseRequest — запрос на запись ответа.
type SetResponseRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// ResponsesResponse — ответы на вопрос.
type ResponsesResponse struct {
	QuestionID string         `json:"question_id"`
	Values     map[string]any `json:"values"`
}

// Navigation DTOs

// NavigateRequest — переход вперёд. Пустые поля: от текущего вопроса по ответам.
type NavigateRequest struct {
	From    string `json:"from,omitempty"`
	LeadsTo string `json:"leads_to,omitempty"`
}

// GoToRequest — переход к вопросу по адресу.
type GoToRequest struct {
	BlockID    string `json:"block_id"`
	QuestionID string `json:"question_id"`
	IsBack     bool   `json:"is_back,omitempty"`
}

// ActionResponse — результат действия над сессией.
type ActionResponse struct {
	Version        int64              `json:"version"`
	Changed        bool               `json:"changed"`
	ActiveQuestion domain.QuestionRef `json:"active_question"`
	BlockID        string             `json:"block_id,omitempty"`
	Invalid        []string           `json:"invalid,omitempty"`
	Incomplete     []string           `json:"incomplete,omitempty"`
	Deferred       bool               `json:"deferred,omitempty"`
	Aborted        bool               `json:"aborted,omitempty"`
	EndOfForm      bool               `json:"end_of_form,omitempty"`
	Stopped        bool               `json:"stopped,omitempty"`
}

// ActionFromResult конвертирует flow.Result в ActionResponse.
func ActionFromResult(res flow.Result) ActionResponse {
	return ActionResponse{
		Version:        res.Version,
		Changed:        res.Changed,
		ActiveQuestion: res.ActiveQuestion,
		BlockID:        res.BlockID,
		Invalid:        res.Invalid,
		Incomplete:     res.Incomplete,
		Deferred:       res.Deferred,
		Aborted:        res.Aborted,
		EndOfForm:      res.EndOfForm,
		Stopped:        res.Stopped,
	}
}

// Block DTOs

// CreateDynamicBlockRequest — запрос на создание копии blueprint'а.
type CreateDynamicBlockRequest struct {
	BlueprintID string `json:"blueprint_id"`
}

// BlockStatusResponse — состояние блока.
type BlockStatusResponse struct {
	BlockID   string `json:"block_id"`
	Active    bool   `json:"active"`
	Completed bool   `json:"completed"`
}

// IncompleteBlocksResponse — незаполненные копии blueprint'а.
type IncompleteBlocksResponse struct {
	BlueprintID string   `json:"blueprint_id"`
	BlockIDs    []string `json:"block_ids"`
}

// ProgressResponse — прогресс анкеты.
type ProgressResponse struct {
	Progress  int  `json:"progress"`
	EndOfForm bool `json:"end_of_form,omitempty"`
}

// Resume & submission DTOs

// ResumeResponse — выданный код возобновления.
type ResumeResponse struct {
	Code string `json:"code"`
}

// SubmissionResponse — отправленная анкета.
type SubmissionResponse struct {
	ID              uuid.UUID                               `json:"id"`
	SessionID       uuid.UUID                               `json:"session_id"`
	FormSlug        string                                  `json:"form_slug"`
	Responses       domain.Responses                        `json:"responses"`
	Blocks          []string                                `json:"blocks"`
	RepeatingGroups map[string][]domain.RepeatingGroupEntry `json:"repeating_groups,omitempty"`
	CreatedAt       time.Time                               `json:"created_at"`
}

// SubmissionFromDomain конвертирует domain.Submission в SubmissionResponse.
func SubmissionFromDomain(s *domain.Submission) SubmissionResponse {
	blocks := make([]string, len(s.Blocks))
	for i := range s.Blocks {
		blocks[i] = s.Blocks[i].BlockID
	}

	var responses domain.Responses
	if s.State != nil {
		responses = s.State.Responses
	}

	return SubmissionResponse{
		ID:              s.ID,
		SessionID:       s.SessionID,
		FormSlug:        s.FormSlug,
		Responses:       responses,
		Blocks:          blocks,
		RepeatingGroups: s.RepeatingGroups,
		CreatedAt:       s.CreatedAt,
	}
}
