// Package httputil provides HTTP request parsing and error responses for the settings API.
package httputil

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/heatpump-outbox/internal/errors"
)

// ErrorResponse is the JSON body of every error answer. RequestID echoes the
// X-Request-Id header so clients can quote it when reporting a failed update.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string // fixed message; empty exposes err.Error()
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{apperrors.ErrNotFound, http.StatusNotFound, "not_found", "The requested resource was not found"},
	{apperrors.ErrConflict, http.StatusConflict, "conflict", ""},
	{apperrors.ErrInvalidInput, http.StatusUnprocessableEntity, "invalid_input", ""},
	{apperrors.ErrUnavailable, http.StatusServiceUnavailable, "unavailable", "The service is temporarily unavailable"},
}

// HandleErrorGin maps domain errors to HTTP status codes and writes a JSON response.
// Unmapped errors become 500 with their details kept in the log only.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	status := http.StatusInternalServerError
	response := ErrorResponse{Error: "internal_error", Message: "An internal error occurred"}

	for _, m := range errorMappings {
		if !apperrors.Is(err, m.target) {
			continue
		}
		status = m.status
		response = ErrorResponse{Error: m.code, Message: m.message}
		if response.Message == "" {
			response.Message = err.Error()
		}
		break
	}

	writeError(c, status, response, err, logger)
}

// HandleBadRequestGin writes a 400 response for malformed JSON or parameters.
func HandleBadRequestGin(c *gin.Context, err error, logger *slog.Logger) {
	writeError(c, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()}, err, logger)
}

// HandleValidationErrorGin writes a 422 response for requests that fail validation.
func HandleValidationErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	writeError(c, http.StatusUnprocessableEntity, ErrorResponse{Error: "validation_error", Message: err.Error()}, err, logger)
}

func writeError(c *gin.Context, status int, response ErrorResponse, err error, logger *slog.Logger) {
	response.RequestID = requestid.Get(c)

	if logger != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c, level, "request failed",
			slog.Int("status_code", status),
			slog.String("error_code", response.Error),
			slog.String("request_id", response.RequestID),
			slog.Any("error", err),
		)
	}

	c.JSON(status, response)
}
