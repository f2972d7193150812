package handler

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/s9b/memenem-backend/internal/service"
)

// errorResponse is the body of every failed request
type errorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Detail  string            `json:"detail,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("error encoding response")
	}
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, status int, message, detail string) {
	writeJSON(w, logger, status, errorResponse{Error: message, Detail: detail})
}

// writeServiceError maps service errors onto HTTP statuses. Only server side
// failures are logged.
func writeServiceError(w http.ResponseWriter, logger zerolog.Logger, message string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, logger, http.StatusBadRequest, errorResponse{
			Error:  "invalid request",
			Detail: verr.Detail(),
			Fields: verr.Fields(),
		})
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrUnknownCategory):
		writeError(w, logger, http.StatusBadRequest, "invalid request", err.Error())
	case errors.Is(err, service.ErrJobNotFound):
		writeError(w, logger, http.StatusNotFound, "job not found", err.Error())
	case errors.Is(err, service.ErrStorageUnavailable):
		logger.Error().Err(err).Msg(message)
		writeError(w, logger, http.StatusServiceUnavailable, message+": storage unavailable", err.Error())
	case errors.Is(err, service.ErrCollaboratorFailure):
		logger.Error().Err(err).Msg(message)
		writeError(w, logger, http.StatusBadGateway, message+": upstream failure", err.Error())
	default:
		logger.Error().Err(err).Msg(message)
		writeError(w, logger, http.StatusInternalServerError, message, err.Error())
	}
}
