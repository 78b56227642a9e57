// Package handler wires HTTP routes to the chat service and maps domain
// errors onto problem responses.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"brightwell/internal/domain"
	"brightwell/internal/httputil"
)

// handleError maps domain errors to HTTP problem responses. Anything without
// a mapping is a 500 with a generic detail; the real error goes to the log.
func handleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var httpErr domain.HTTPError
	if errors.As(err, &httpErr) {
		httputil.RespondError(w, httpErr.StatusCode(), httpErr.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, "you are not authorized to access this resource")
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, "you do not have access to this resource")
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrConflict):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	default:
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
