package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/narvanalabs/causeway/internal/api/errors"
	cerrors "github.com/narvanalabs/causeway/internal/errors"
	"github.com/narvanalabs/causeway/internal/importer"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	apierrors.WriteJSON(w, status, data)
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	apierrors.WriteErrorWithRequestID(w, apierrors.NewValidationError(message), middleware.GetReqID(r.Context()))
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, r *http.Request, message string) {
	apierrors.WriteErrorWithRequestID(w, apierrors.NewNotFoundError(message), middleware.GetReqID(r.Context()))
}

// WriteError classifies err and writes it. Failures the client cannot act
// on are logged.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	apiErr := apierrors.FromError(err)
	if errors.Is(err, importer.ErrShuttingDown) {
		apiErr = apierrors.NewServiceUnavailableError(err.Error())
	}

	if status := apiErr.HTTPStatusCode(); status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"error", err,
			"kind", cerrors.KindOf(err).String(),
			"status", status,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
		)
	}
	apierrors.WriteErrorWithRequestID(w, apiErr, middleware.GetReqID(r.Context()))
}
