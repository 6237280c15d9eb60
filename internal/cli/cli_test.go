package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/domain"
)

// fakeAPI записывает запросы и отвечает заготовленными данными.
type fakeAPI struct {
	mu       sync.Mutex
	requests []recorded
	routes   map[string]func(w http.ResponseWriter, body map[string]any)
}

type recorded struct {
	Method string
	Path   string
	Body   map[string]any
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{routes: make(map[string]func(http.ResponseWriter, map[string]any))}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &body)
		}

		f.mu.Lock()
		f.requests = append(f.requests, recorded{Method: r.Method, Path: r.URL.EscapedPath(), Body: body})
		fn := f.routes[r.Method+" "+r.URL.EscapedPath()]
		f.mu.Unlock()

		if fn == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error": map[string]string{"code": "NOT_FOUND", "message": "session not found"},
			})
			return
		}
		fn(w, body)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) on(route string, status int, data any) {
	f.routes[route] = func(w http.ResponseWriter, _ map[string]any) {
		writeJSON(w, status, map[string]any{"data": data})
	}
}

func (f *fakeAPI) calls() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.requests...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// run выполняет команду и возвращает stdout, stderr и ошибку.
func run(t *testing.T, baseURL string, jsonMode bool, newCmd func(func() *Client, func() *Output) *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	clientFn := func() *Client { return NewClient(baseURL) }
	outputFn := func() *Output { return NewOutputTo(jsonMode, &stdout, &stderr) }

	cmd := newCmd(clientFn, outputFn)
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

var actionData = map[string]any{
	"version":         3,
	"changed":         true,
	"active_question": map[string]string{"block_id": "introduzione", "question_id": "fase_acquisto"},
}

func TestSessionStart(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.on("POST /api/v1/sessions", http.StatusCreated, map[string]any{
		"id":              "3f1c",
		"form_slug":       "mutuo",
		"form_version":    1,
		"status":          "ACCESSED",
		"active_question": map[string]string{"block_id": "introduzione", "question_id": "tipo_mutuo"},
		"progress":        0,
		"question": map[string]any{
			"question_id":   "tipo_mutuo",
			"rendered_text": "Sto cercando un mutuo per ___",
		},
	})

	stdout, stderr, err := run(t, srv.URL, false, NewSessionCmd, "start", "--resume", "ABC123")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if !strings.Contains(stderr, "Session resumed: 3f1c") {
		t.Errorf("stderr = %q", stderr)
	}
	for _, want := range []string{"introduzione/tipo_mutuo", "mutuo v1", "ACCESSED", "Sto cercando un mutuo per"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}

	calls := api.calls()
	if diff := cmp.Diff(map[string]any{"resume_code": "ABC123"}, calls[0].Body); diff != "" {
		t.Errorf("request body mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionAnswer_SetsEachKeyThenNavigates(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.on("PUT /api/v1/sessions/s1/responses/tipo_mutuo", http.StatusOK, actionData)
	api.on("POST /api/v1/sessions/s1/next", http.StatusOK, actionData)

	stdout, _, err := run(t, srv.URL, true, NewSessionCmd,
		"answer", "s1", "tipo_mutuo", "placeholder1=acquisto", `extra=["a","b"]`, "--next")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}

	var got []recorded
	for _, c := range api.calls() {
		got = append(got, recorded{Method: c.Method, Path: c.Path, Body: c.Body})
	}
	want := []recorded{
		{Method: "PUT", Path: "/api/v1/sessions/s1/responses/tipo_mutuo", Body: map[string]any{"key": "placeholder1", "value": "acquisto"}},
		{Method: "PUT", Path: "/api/v1/sessions/s1/responses/tipo_mutuo", Body: map[string]any{"key": "extra", "value": []any{"a", "b"}}},
		{Method: "POST", Path: "/api/v1/sessions/s1/next", Body: map[string]any{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}

	var action ActionResponse
	if err := json.Unmarshal([]byte(stdout), &action); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if action.ActiveQuestion.QuestionID != "fase_acquisto" || action.Version != 3 {
		t.Errorf("action = %+v", action)
	}
}

func TestSessionAnswer_BadFormat(t *testing.T) {
	_, srv := newFakeAPI(t)

	_, _, err := run(t, srv.URL, false, NewSessionCmd, "answer", "s1", "q", "novalue")
	if err == nil || !strings.Contains(err.Error(), "expected KEY=VALUE") {
		t.Fatalf("err = %v", err)
	}
}

func TestBlockCommands_EscapePath(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.on("GET /api/v1/sessions/s1/blueprints/reddito_%7Bn%7D/incomplete", http.StatusOK, map[string]any{
		"blueprint_id": "reddito_{n}",
		"block_ids":    []string{"reddito_1"},
	})
	api.on("DELETE /api/v1/sessions/s1/dynamic-blocks/reddito_1", http.StatusOK, actionData)

	stdout, _, err := run(t, srv.URL, false, NewBlockCmd, "incomplete", "s1", "reddito_{n}")
	if err != nil {
		t.Fatalf("incomplete: %v", err)
	}
	if !strings.Contains(stdout, "reddito_1") {
		t.Errorf("stdout = %q", stdout)
	}

	if _, _, err := run(t, srv.URL, false, NewBlockCmd, "delete", "s1", "reddito_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestClient_APIError(t *testing.T) {
	_, srv := newFakeAPI(t)

	_, err := NewClient(srv.URL).GetSession("missing")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Code != "NOT_FOUND" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if apiErr.Error() != "NOT_FOUND: session not found" {
		t.Errorf("Error() = %q", apiErr.Error())
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw     string
		want    any
		wantErr bool
	}{
		{raw: "acquisto", want: "acquisto"},
		{raw: "", want: ""},
		{raw: "250000", want: "250000"},
		{raw: `["a","b"]`, want: []any{"a", "b"}},
		{raw: `{"x":1}`, want: map[string]any{"x": float64(1)}},
		{raw: `[broken`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseValue(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func runForm(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewFormCmd(func() *Output { return NewOutputTo(false, &stdout, &stderr) })
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestFormValidate_Builtin(t *testing.T) {
	_, stderr, err := runForm(t, "validate", "--builtin", "mutuo")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(stderr, "Form mutuo v1 is valid") {
		t.Errorf("stderr = %q", stderr)
	}
}

const brokenForm = `slug: broken
version: 2
blocks:
  - block_id: start
    priority: 1
    default_active: true
    questions:
      - question_id: q1
        question_text: "Scelta {{p}}"
        placeholders:
          p:
            type: select
            options:
              - { id: a, label: "A", leads_to: missing }
`

func writeForm(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFormValidate_DanglingReference(t *testing.T) {
	path := writeForm(t, "broken.yaml", brokenForm)

	stdout, _, err := runForm(t, "validate", path)
	if !errors.Is(err, ErrInvalidForm) {
		t.Fatalf("err = %v, want ErrInvalidForm", err)
	}
	if !strings.Contains(stdout, "missing") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestFormBlocks(t *testing.T) {
	stdout, _, err := runForm(t, "blocks", "--builtin", "mutuo")
	if err != nil {
		t.Fatalf("blocks: %v", err)
	}
	for _, want := range []string{"introduzione", "blueprint", "default"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q", want)
		}
	}
}

func TestFormValidate_NeedsSource(t *testing.T) {
	if _, _, err := runForm(t, "validate"); err == nil {
		t.Fatal("expected error without FILE or --builtin")
	}
}

type fakePublisher struct {
	published []*domain.FormDefinition
}

func (p *fakePublisher) Publish(_ context.Context, def *domain.FormDefinition) (*domain.FormDefinition, error) {
	out := *def
	out.ID = uuid.New()
	out.Version = len(p.published) + 1
	p.published = append(p.published, &out)
	return &out, nil
}

func TestFormPublish(t *testing.T) {
	fixed := strings.Replace(brokenForm, "leads_to: missing", "leads_to: q1", 1)

	tests := []struct {
		name    string
		content string
		wantErr error
		wantN   int
	}{
		{name: "valid", content: fixed, wantN: 1},
		{name: "dangling reference", content: brokenForm, wantErr: ErrInvalidForm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			connected := false
			publisherFn := func(context.Context) (FormPublisher, func(), error) {
				connected = true
				return pub, func() {}, nil
			}

			var stdout, stderr bytes.Buffer
			cmd := newFormPublishCmd(func() *Output { return NewOutputTo(false, &stdout, &stderr) }, publisherFn)
			cmd.SetArgs([]string{writeForm(t, "form.yaml", tt.content)})
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)

			err := cmd.Execute()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if len(pub.published) != tt.wantN {
				t.Errorf("published %d versions, want %d", len(pub.published), tt.wantN)
			}
			if tt.wantErr != nil && connected {
				t.Error("database must not be touched for an invalid form")
			}
			if tt.wantErr == nil && !strings.Contains(stderr.String(), "Version 1 published for form broken") {
				t.Errorf("stderr = %q", stderr.String())
			}
		})
	}
}
