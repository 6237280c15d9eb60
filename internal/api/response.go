package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/flow"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/repo"
	"github.com/Casium-it/mutuo-rapido-italia-sub000/internal/session"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeConflict       ErrorCode = "CONFLICT"
	ErrCodeInvalidState   ErrorCode = "INVALID_STATE"
	ErrCodeUnavailable    ErrorCode = "UNAVAILABLE"
	ErrCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrCodeMethodNotAllow ErrorCode = "METHOD_NOT_ALLOWED"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отправляет ответ о создании ресурса.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict отправляет ошибку 409.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, ErrCodeConflict, message)
}

// InvalidState отправляет ошибку 422.
func InvalidState(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnprocessableEntity, ErrCodeInvalidState, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandleError преобразует ошибку сервиса сессий или движка в HTTP ответ.
//
// Устаревшие ID блоков и вопросов — 404, состояние при этом не меняется.
func HandleError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		NotFound(w, "session not found")

	case errors.Is(err, session.ErrResumeNotFound):
		NotFound(w, "the resume code is invalid or has expired")

	case errors.Is(err, repo.ErrNotFound):
		NotFound(w, "not found")

	case errors.Is(err, flow.ErrBlockNotFound),
		errors.Is(err, flow.ErrQuestionNotFound),
		errors.Is(err, flow.ErrPlaceholderNotFound),
		errors.Is(err, flow.ErrUnknownBlueprint):
		NotFound(w, err.Error())

	case errors.Is(err, session.ErrAlreadySubmitted),
		errors.Is(err, flow.ErrNavigationInProgress),
		errors.Is(err, flow.ErrIncompleteInstances):
		Conflict(w, err.Error())

	case errors.Is(err, flow.ErrBlockNotActive),
		errors.Is(err, flow.ErrNotDynamicBlock),
		errors.Is(err, flow.ErrNotAField),
		errors.Is(err, flow.ErrFlowStopped):
		InvalidState(w, err.Error())

	case errors.Is(err, session.ErrStoreUnavailable):
		Error(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())

	default:
		InternalError(w, logger, err)
	}
	return true
}
