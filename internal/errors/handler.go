package errors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// ErrorHandler provides centralized error handling for HTTP handlers
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger.With(slog.String("component", "error_handler")),
	}
}

// HandleError converts any error to a structured API response and renders it
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	apiErr := h.toAPIError(err)
	render.Render(w, r, NewErrorResponse(apiErr))
}

// toAPIError maps domain errors onto API error responses
func (h *ErrorHandler) toAPIError(err error) *APIError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return New(http.StatusGatewayTimeout, "TIMEOUT", "The request took too long to process and was cancelled")
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case ErrTypeValidation:
			return InvalidInputError(appErr.Details)
		case ErrTypeNotFound:
			return NewWithDetails(http.StatusNotFound, "MODEL_NOT_FOUND", appErr.Message, appErr.Error())
		case ErrTypeTimeout:
			return NewWithDetails(http.StatusGatewayTimeout, "BATCH_TIMEOUT", appErr.Message, appErr.Error())
		case ErrTypeConfig:
			return NewWithDetails(http.StatusUnprocessableEntity, "CONFIGURATION_ERROR", appErr.Message, appErr.Error())
		case ErrTypeParsing:
			return NewWithDetails(http.StatusBadRequest, "PARSING_ERROR", appErr.Message, appErr.Error())
		default:
			return NewWithDetails(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", appErr.Message, appErr.Error())
		}
	}

	return ErrInternalServer
}

// NotFound handles 404 responses for unmatched routes
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	render.Render(w, r, NewErrorResponse(NotFoundError(r.URL.Path)))
}

// MethodNotAllowed handles 405 responses
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	render.Render(w, r, NewErrorResponse(New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")))
}

// HandlePanic converts a recovered panic into a 500 response
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("path", r.URL.Path),
	)
	render.Render(w, r, NewErrorResponse(ErrInternalServer))
}
