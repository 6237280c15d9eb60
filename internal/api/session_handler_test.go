package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/flow"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/formdef"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/session"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/telemetry"
)

type testServer struct {
	mux *http.ServeMux
	reg *prometheus.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	svc, err := session.New(session.Config{
		Forms: formdef.NewLoader(formdef.Config{}),
	})
	if err != nil {
		t.Fatalf("new session service: %v", err)
	}

	reg := prometheus.NewRegistry()
	h := NewHandler(Config{Sessions: svc, Metrics: telemetry.NewMetrics(reg)})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return &testServer{mux: mux, reg: reg}
}

// do выполняет запрос и декодирует поле data (или error) в out.
func (s *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if out != nil {
		var envelope struct {
			Data  json.RawMessage `json:"data"`
			Error json.RawMessage `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), err)
		}
		raw := envelope.Data
		if raw == nil {
			raw = envelope.Error
		}
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("%s %s: decode payload: %v", method, path, err)
		}
	}
	return rec.Code
}

func (s *testServer) start(t *testing.T) SessionResponse {
	t.Helper()
	var sess SessionResponse
	if code := s.do(t, http.MethodPost, "/api/v1/sessions", nil, &sess); code != http.StatusCreated {
		t.Fatalf("start session: status %d", code)
	}
	return sess
}

func sessionPath(sess SessionResponse, suffix string) string {
	return fmt.Sprintf("/api/v1/sessions/%s%s", sess.ID, suffix)
}

func TestStartSession(t *testing.T) {
	s := newTestServer(t)
	sess := s.start(t)

	if sess.Status != domain.SessionStatusAccessed {
		t.Errorf("expected ACCESSED, got %s", sess.Status)
	}
	want := domain.QuestionRef{BlockID: "introduzione", QuestionID: "tipo_mutuo"}
	if sess.ActiveQuestion != want {
		t.Errorf("expected %+v, got %+v", want, sess.ActiveQuestion)
	}
	if sess.Question == nil || !strings.Contains(sess.Question.QuestionText, "{{placeholder1}}") {
		t.Errorf("expected question text with placeholder, got %+v", sess.Question)
	}
	if sess.Question != nil && !strings.Contains(sess.Question.RenderedText, "____") {
		t.Errorf("expected empty answer marker in rendered text, got %q", sess.Question.RenderedText)
	}
}

func TestStartSession_ResumeWithoutStore(t *testing.T) {
	s := newTestServer(t)

	var e ErrorDetail
	code := s.do(t, http.MethodPost, "/api/v1/sessions", StartSessionRequest{ResumeCode: "NOPE"}, &e)
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without resume store, got %d", code)
	}
}

func TestAnswerAndNavigate(t *testing.T) {
	s := newTestServer(t)
	sess := s.start(t)

	var act ActionResponse
	code := s.do(t, http.MethodPut, sessionPath(sess, "/responses/tipo_mutuo"),
		SetResponseRequest{Key: "placeholder1", Value: "acquisto"}, &act)
	if code != http.StatusOK || !act.Changed {
		t.Fatalf("set response: status %d, %+v", code, act)
	}

	var values ResponsesResponse
	s.do(t, http.MethodGet, sessionPath(sess, "/responses/tipo_mutuo"), nil, &values)
	if diff := cmp.Diff(map[string]any{"placeholder1": "acquisto"}, values.Values); diff != "" {
		t.Errorf("responses mismatch (-want +got):\n%s", diff)
	}

	code = s.do(t, http.MethodPost, sessionPath(sess, "/next"), nil, &act)
	if code != http.StatusOK {
		t.Fatalf("next: status %d", code)
	}
	if act.ActiveQuestion.QuestionID != "fase_acquisto" {
		t.Errorf("expected fase_acquisto, got %+v", act.ActiveQuestion)
	}

	// без ответа навигация не выполняется
	code = s.do(t, http.MethodPost, sessionPath(sess, "/next"), nil, &act)
	if code != http.StatusOK {
		t.Fatalf("next without answer: status %d", code)
	}
	if diff := cmp.Diff([]string{"placeholder1"}, act.Invalid); diff != "" {
		t.Errorf("invalid mismatch (-want +got):\n%s", diff)
	}
	if act.ActiveQuestion.QuestionID != "fase_acquisto" {
		t.Errorf("should stay on fase_acquisto, got %+v", act.ActiveQuestion)
	}

	code = s.do(t, http.MethodPost, sessionPath(sess, "/back"), nil, &act)
	if code != http.StatusOK || act.ActiveQuestion.QuestionID != "tipo_mutuo" {
		t.Errorf("back: status %d, %+v", code, act.ActiveQuestion)
	}

	var got SessionResponse
	s.do(t, http.MethodGet, sessionPath(sess, ""), nil, &got)
	if got.Status != domain.SessionStatusStarted {
		t.Errorf("expected STARTED, got %s", got.Status)
	}
	if got.Question == nil || !strings.Contains(got.Question.RenderedText, "acquistare casa") {
		t.Errorf("expected rendered answer label, got %+v", got.Question)
	}
}

func TestStaleIDsReturn404(t *testing.T) {
	s := newTestServer(t)
	sess := s.start(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"goto unknown block", http.MethodPost, "/goto", GoToRequest{BlockID: "gone", QuestionID: "x"}},
		{"goto unknown question", http.MethodPost, "/goto", GoToRequest{BlockID: "introduzione", QuestionID: "gone"}},
		{"answer unknown question", http.MethodPut, "/responses/gone", SetResponseRequest{Key: "p", Value: "v"}},
		{"responses unknown question", http.MethodGet, "/responses/gone", nil},
		{"activate unknown block", http.MethodPost, "/blocks/gone/activate", nil},
		{"status unknown block", http.MethodGet, "/blocks/gone/completed", nil},
		{"delete unknown copy", http.MethodDelete, "/dynamic-blocks/gone", nil},
		{"unknown blueprint", http.MethodPost, "/dynamic-blocks", CreateDynamicBlockRequest{BlueprintID: "gone_{n}"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e ErrorDetail
			if code := s.do(t, tt.method, sessionPath(sess, tt.path), tt.body, &e); code != http.StatusNotFound {
				t.Errorf("expected 404, got %d (%+v)", code, e)
			}
			if e.Code != ErrCodeNotFound {
				t.Errorf("expected NOT_FOUND, got %s", e.Code)
			}
		})
	}

	var got SessionResponse
	s.do(t, http.MethodGet, sessionPath(sess, ""), nil, &got)
	if got.Version != sess.Version || got.ActiveQuestion != sess.ActiveQuestion {
		t.Errorf("state must not change: before %+v, after %+v", sess, got)
	}
}

func TestUnknownSession(t *testing.T) {
	s := newTestServer(t)

	var e ErrorDetail
	if code := s.do(t, http.MethodGet, "/api/v1/sessions/2f1c1c1e-0000-4000-8000-000000000000", nil, &e); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
	if code := s.do(t, http.MethodGet, "/api/v1/sessions/not-a-uuid", nil, &e); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestDynamicBlocks(t *testing.T) {
	s := newTestServer(t)
	sess := s.start(t)

	var act ActionResponse
	code := s.do(t, http.MethodPost, sessionPath(sess, "/dynamic-blocks"),
		CreateDynamicBlockRequest{BlueprintID: "reddito_{n}"}, &act)
	if code != http.StatusCreated {
		t.Fatalf("create copy: status %d", code)
	}
	if act.BlockID != "reddito_1" {
		t.Errorf("expected reddito_1, got %q", act.BlockID)
	}

	var incomplete IncompleteBlocksResponse
	code = s.do(t, http.MethodGet, sessionPath(sess, "/blueprints/"+url.PathEscape("reddito_{n}")+"/incomplete"), nil, &incomplete)
	if code != http.StatusOK {
		t.Fatalf("incomplete: status %d", code)
	}
	if diff := cmp.Diff([]string{"reddito_1"}, incomplete.BlockIDs); diff != "" {
		t.Errorf("incomplete mismatch (-want +got):\n%s", diff)
	}

	var status BlockStatusResponse
	s.do(t, http.MethodGet, sessionPath(sess, "/blocks/reddito_1/completed"), nil, &status)
	if !status.Active || status.Completed {
		t.Errorf("expected active, not completed copy, got %+v", status)
	}

	if code := s.do(t, http.MethodDelete, sessionPath(sess, "/dynamic-blocks/reddito_1"), nil, &act); code != http.StatusOK {
		t.Errorf("delete copy: status %d", code)
	}

	var e ErrorDetail
	if code := s.do(t, http.MethodDelete, sessionPath(sess, "/dynamic-blocks/introduzione"), nil, &e); code != http.StatusUnprocessableEntity {
		t.Errorf("deleting a static block: expected 422, got %d", code)
	}
}

func TestProgressAndReset(t *testing.T) {
	s := newTestServer(t)
	sess := s.start(t)

	var p ProgressResponse
	if code := s.do(t, http.MethodGet, sessionPath(sess, "/progress"), nil, &p); code != http.StatusOK {
		t.Fatalf("progress: status %d", code)
	}
	if p.Progress != 0 {
		t.Errorf("expected 0 progress, got %d", p.Progress)
	}

	var act ActionResponse
	if code := s.do(t, http.MethodPost, sessionPath(sess, "/reset"), nil, &act); code != http.StatusOK || !act.Changed {
		t.Errorf("reset: status %d, %+v", code, act)
	}
}

func TestStoresUnavailable(t *testing.T) {
	s := newTestServer(t)
	sess := s.start(t)

	for _, suffix := range []string{"/submit", "/resume"} {
		var e ErrorDetail
		if code := s.do(t, http.MethodPost, sessionPath(sess, suffix), nil, &e); code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", suffix, code)
		}
	}

	var e ErrorDetail
	if code := s.do(t, http.MethodGet, "/api/v1/submissions/2f1c1c1e-0000-4000-8000-000000000000", nil, &e); code != http.StatusServiceUnavailable {
		t.Errorf("submissions: expected 503, got %d", code)
	}
}

func TestQuestionResponse_Sanitized(t *testing.T) {
	h := NewHandler(Config{})
	q := &domain.Question{
		QuestionID:    "q",
		QuestionText:  `<script>alert(1)</script>Ho <b>{{p}}</b> anni`,
		QuestionNotes: `<a href="javascript:alert(1)">info</a>`,
		Placeholders: domain.Placeholders{{
			Key:         "p",
			Placeholder: domain.Placeholder{Input: &domain.InputField{InputType: "number"}},
		}},
	}
	responses := domain.Responses{"q": {"p": `<img src=x onerror=alert(1)>`}}

	got := h.questionResponse(q, responses)

	for name, text := range map[string]string{
		"question_text": got.QuestionText,
		"rendered_text": got.RenderedText,
		"notes":         got.QuestionNotes,
	} {
		for _, bad := range []string{"<script", "javascript:", "onerror"} {
			if strings.Contains(text, bad) {
				t.Errorf("%s still contains %q: %s", name, bad, text)
			}
		}
	}
	if !strings.Contains(got.QuestionText, "<b>{{p}}</b>") {
		t.Errorf("safe markup and placeholder should survive, got %q", got.QuestionText)
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrSessionNotFound, http.StatusNotFound},
		{session.ErrResumeNotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", flow.ErrBlockNotFound), http.StatusNotFound},
		{flow.ErrNavigationInProgress, http.StatusConflict},
		{flow.ErrIncompleteInstances, http.StatusConflict},
		{session.ErrAlreadySubmitted, http.StatusConflict},
		{flow.ErrFlowStopped, http.StatusUnprocessableEntity},
		{flow.ErrBlockNotActive, http.StatusUnprocessableEntity},
		{session.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		if !HandleError(rec, slogDiscard(), tt.err) {
			t.Errorf("%v: expected handled", tt.err)
		}
		if rec.Code != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, rec.Code)
		}
	}

	if HandleError(httptest.NewRecorder(), slogDiscard(), nil) {
		t.Error("nil error must not be handled")
	}
}

func TestMetricsMiddleware(t *testing.T) {
	s := newTestServer(t)
	s.start(t)

	families, err := s.reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() != "questionnaire_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "route" && lp.GetValue() == "POST /api/v1/sessions" {
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("expected request counted under route pattern")
	}
}
