package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// QuestionRef — адрес вопроса.
type QuestionRef struct {
	BlockID    string `json:"block_id"`
	QuestionID string `json:"question_id"`
}

// String возвращает адрес в виде block/question.
func (r QuestionRef) String() string {
	if r.BlockID == "" && r.QuestionID == "" {
		return "-"
	}
	return r.BlockID + "/" + r.QuestionID
}

// QuestionResponse — вопрос из API.
type QuestionResponse struct {
	QuestionID     string          `json:"question_id"`
	BlockID        string          `json:"block_id"`
	QuestionNumber string          `json:"question_number,omitempty"`
	QuestionText   string          `json:"question_text"`
	RenderedText   string          `json:"rendered_text"`
	QuestionNotes  string          `json:"question_notes,omitempty"`
	Inline         bool            `json:"inline,omitempty"`
	EndOfForm      bool            `json:"end_of_form,omitempty"`
	Placeholders   json.RawMessage `json:"placeholders,omitempty"`
	Responses      map[string]any  `json:"responses,omitempty"`
}

// SessionResponse — сессия из API.
type SessionResponse struct {
	ID                 string            `json:"id"`
	FormSlug           string            `json:"form_slug"`
	FormVersion        int               `json:"form_version"`
	Status             string            `json:"status"`
	ResumeCode         string            `json:"resume_code,omitempty"`
	Version            int64             `json:"version"`
	ActiveQuestion     QuestionRef       `json:"active_question"`
	Question           *QuestionResponse `json:"question,omitempty"`
	Progress           int               `json:"progress"`
	ActiveBlocks       []string          `json:"active_blocks"`
	CompletedBlocks    []string          `json:"completed_blocks"`
	AnsweredQuestions  []string          `json:"answered_questions"`
	FlowStopped        bool              `json:"flow_stopped,omitempty"`
	EndOfForm          bool              `json:"end_of_form,omitempty"`
	AllBlocksCompleted bool              `json:"all_blocks_completed,omitempty"`
	CreatedAt          string            `json:"created_at"`
}

// ActionResponse — результат действия из API.
type ActionResponse struct {
	Version        int64       `json:"version"`
	Changed        bool        `json:"changed"`
	ActiveQuestion QuestionRef `json:"active_question"`
	BlockID        string      `json:"block_id,omitempty"`
	Invalid        []string    `json:"invalid,omitempty"`
	Incomplete     []string    `json:"incomplete,omitempty"`
	Deferred       bool        `json:"deferred,omitempty"`
	Aborted        bool        `json:"aborted,omitempty"`
	EndOfForm      bool        `json:"end_of_form,omitempty"`
	Stopped        bool        `json:"stopped,omitempty"`
}

// ResponsesResponse — ответы на вопрос из API.
type ResponsesResponse struct {
	QuestionID string         `json:"question_id"`
	Values     map[string]any `json:"values"`
}

// BlockStatusResponse — состояние блока из API.
type BlockStatusResponse struct {
	BlockID   string `json:"block_id"`
	Active    bool   `json:"active"`
	Completed bool   `json:"completed"`
}

// IncompleteBlocksResponse — незаполненные копии blueprint'а из API.
type IncompleteBlocksResponse struct {
	BlueprintID string   `json:"blueprint_id"`
	BlockIDs    []string `json:"block_ids"`
}

// ProgressResponse — прогресс из API.
type ProgressResponse struct {
	Progress  int  `json:"progress"`
	EndOfForm bool `json:"end_of_form,omitempty"`
}

// ResumeResponse — код возобновления из API.
type ResumeResponse struct {
	Code string `json:"code"`
}

// SubmissionResponse — отправленная анкета из API.
type SubmissionResponse struct {
	ID              string                    `json:"id"`
	SessionID       string                    `json:"session_id"`
	FormSlug        string                    `json:"form_slug"`
	Responses       map[string]map[string]any `json:"responses"`
	Blocks          []string                  `json:"blocks"`
	RepeatingGroups map[string]any            `json:"repeating_groups,omitempty"`
	CreatedAt       string                    `json:"created_at"`
}

// --- Request types ---

// StartSessionRequest — открытие сессии.
type StartSessionRequest struct {
	ResumeCode string `json:"resume_code,omitempty"`
}

// SetResponseRequest — запись ответа.
type SetResponseRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// NavigateRequest — переход вперёд.
type NavigateRequest struct {
	From    string `json:"from,omitempty"`
	LeadsTo string `json:"leads_to,omitempty"`
}

// GoToRequest — переход к вопросу.
type GoToRequest struct {
	BlockID    string `json:"block_id"`
	QuestionID string `json:"question_id"`
	IsBack     bool   `json:"is_back,omitempty"`
}

// CreateDynamicBlockRequest — создание копии blueprint'а.
type CreateDynamicBlockRequest struct {
	BlueprintID string `json:"blueprint_id"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ошибка, возвращённая API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Client ---

// Client — HTTP-клиент для API анкеты.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func sessionPath(id string) string {
	return "/api/v1/sessions/" + url.PathEscape(id)
}

// --- Sessions ---

// StartSession открывает новую сессию или возобновляет сохранённую.
func (c *Client) StartSession(resumeCode string) (*SessionResponse, error) {
	var s SessionResponse
	err := c.post("/api/v1/sessions", StartSessionRequest{ResumeCode: resumeCode}, &s)
	return &s, err
}

// GetSession возвращает состояние сессии.
func (c *Client) GetSession(id string) (*SessionResponse, error) {
	var s SessionResponse
	err := c.get(sessionPath(id), &s)
	return &s, err
}

// GetResponses возвращает ответы на вопрос.
func (c *Client) GetResponses(id, questionID string) (*ResponsesResponse, error) {
	var r ResponsesResponse
	err := c.get(sessionPath(id)+"/responses/"+url.PathEscape(questionID), &r)
	return &r, err
}

// SetResponse записывает ответ на placeholder вопроса.
func (c *Client) SetResponse(id, questionID, key string, value any) (*ActionResponse, error) {
	var a ActionResponse
	err := c.put(sessionPath(id)+"/responses/"+url.PathEscape(questionID), SetResponseRequest{Key: key, Value: value}, &a)
	return &a, err
}

// Next переходит вперёд от текущего вопроса.
func (c *Client) Next(id string, req NavigateRequest) (*ActionResponse, error) {
	var a ActionResponse
	err := c.post(sessionPath(id)+"/next", req, &a)
	return &a, err
}

// Back возвращается к предыдущему вопросу.
func (c *Client) Back(id string) (*ActionResponse, error) {
	var a ActionResponse
	err := c.post(sessionPath(id)+"/back", nil, &a)
	return &a, err
}

// GoTo переходит к вопросу по адресу.
func (c *Client) GoTo(id string, req GoToRequest) (*ActionResponse, error) {
	var a ActionResponse
	err := c.post(sessionPath(id)+"/goto", req, &a)
	return &a, err
}

// Progress возвращает прогресс анкеты.
func (c *Client) Progress(id string) (*ProgressResponse, error) {
	var p ProgressResponse
	err := c.get(sessionPath(id)+"/progress", &p)
	return &p, err
}

// Reset сбрасывает сессию к начальному состоянию.
func (c *Client) Reset(id string) (*ActionResponse, error) {
	var a ActionResponse
	err := c.post(sessionPath(id)+"/reset", nil, &a)
	return &a, err
}

// Submit отправляет анкету.
func (c *Client) Submit(id string) (*SubmissionResponse, error) {
	var s SubmissionResponse
	err := c.post(sessionPath(id)+"/submit", nil, &s)
	return &s, err
}

// SaveForResume сохраняет сессию и возвращает код возобновления.
func (c *Client) SaveForResume(id string) (*ResumeResponse, error) {
	var r ResumeResponse
	err := c.post(sessionPath(id)+"/resume", nil, &r)
	return &r, err
}

// GetSubmission возвращает отправленную анкету.
func (c *Client) GetSubmission(id string) (*SubmissionResponse, error) {
	var s SubmissionResponse
	err := c.get("/api/v1/submissions/"+url.PathEscape(id), &s)
	return &s, err
}

// --- Blocks ---

// ActivateBlock добавляет блок в активные.
func (c *Client) ActivateBlock(id, blockID string) (*ActionResponse, error) {
	var a ActionResponse
	err := c.post(sessionPath(id)+"/blocks/"+url.PathEscape(blockID)+"/activate", nil, &a)
	return &a, err
}

// DeactivateBlock убирает блок из активных.
func (c *Client) DeactivateBlock(id, blockID string) (*ActionResponse, error) {
	var a ActionResponse
	err := c.doData(http.MethodDelete, sessionPath(id)+"/blocks/"+url.PathEscape(blockID)+"/activate", nil, &a)
	return &a, err
}

// BlockStatus возвращает состояние блока.
func (c *Client) BlockStatus(id, blockID string) (*BlockStatusResponse, error) {
	var b BlockStatusResponse
	err := c.get(sessionPath(id)+"/blocks/"+url.PathEscape(blockID)+"/completed", &b)
	return &b, err
}

// CreateDynamicBlock создаёт копию blueprint'а.
func (c *Client) CreateDynamicBlock(id, blueprintID string) (*ActionResponse, error) {
	var a ActionResponse
	err := c.post(sessionPath(id)+"/dynamic-blocks", CreateDynamicBlockRequest{BlueprintID: blueprintID}, &a)
	return &a, err
}

// DeleteDynamicBlock удаляет копию blueprint'а.
func (c *Client) DeleteDynamicBlock(id, blockID string) (*ActionResponse, error) {
	var a ActionResponse
	err := c.doData(http.MethodDelete, sessionPath(id)+"/dynamic-blocks/"+url.PathEscape(blockID), nil, &a)
	return &a, err
}

// IncompleteBlocks возвращает незаполненные копии blueprint'а.
func (c *Client) IncompleteBlocks(id, blueprintID string) (*IncompleteBlocksResponse, error) {
	var r IncompleteBlocksResponse
	err := c.get(sessionPath(id)+"/blueprints/"+url.PathEscape(blueprintID)+"/incomplete", &r)
	return &r, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return &APIError{Status: resp.StatusCode}
	}

	return &APIError{Status: resp.StatusCode, Code: er.Error.Code, Message: er.Error.Message}
}
