package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Metrics(h.metrics),
		Logging(h.logger),
	)

	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, chain(fn))
	}

	// Sessions
	handle("POST /api/v1/sessions", h.StartSession)
	handle("GET /api/v1/sessions/{id}", h.GetSession)
	handle("POST /api/v1/sessions/{id}/reset", h.Reset)
	handle("POST /api/v1/sessions/{id}/submit", h.Submit)
	handle("POST /api/v1/sessions/{id}/resume", h.SaveForResume)
	handle("GET /api/v1/sessions/{id}/progress", h.GetProgress)

	// Responses
	handle("GET /api/v1/sessions/{id}/responses/{qid}", h.GetResponses)
	handle("PUT /api/v1/sessions/{id}/responses/{qid}", h.SetResponse)

	// Navigation
	handle("POST /api/v1/sessions/{id}/next", h.Next)
	handle("POST /api/v1/sessions/{id}/back", h.Back)
	handle("POST /api/v1/sessions/{id}/goto", h.GoTo)

	// Blocks
	handle("POST /api/v1/sessions/{id}/blocks/{bid}/activate", h.ActivateBlock)
	handle("DELETE /api/v1/sessions/{id}/blocks/{bid}/activate", h.DeactivateBlock)
	handle("GET /api/v1/sessions/{id}/blocks/{bid}/completed", h.GetBlockStatus)
	handle("PUT /api/v1/sessions/{id}/blocks/{bid}/completed", h.MarkBlockCompleted)
	handle("DELETE /api/v1/sessions/{id}/blocks/{bid}/completed", h.UnmarkBlockCompleted)

	// Repeating sections
	handle("POST /api/v1/sessions/{id}/dynamic-blocks", h.CreateDynamicBlock)
	handle("DELETE /api/v1/sessions/{id}/dynamic-blocks/{bid}", h.DeleteDynamicBlock)
	handle("GET /api/v1/sessions/{id}/blueprints/{bp}/incomplete", h.GetIncompleteBlocks)

	// Submissions
	handle("GET /api/v1/submissions/{id}", h.GetSubmission)
}
