package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/kalambet/tutordesk/internal/conversation"
	"github.com/kalambet/tutordesk/internal/ingest"
	"github.com/kalambet/tutordesk/internal/pipeline"
	"github.com/kalambet/tutordesk/internal/storage"
)

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("writing response failed", zap.Error(err))
	}
}

// writeErr maps a domain error onto an HTTP status.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, conversation.ErrMessageNotFound),
		errors.Is(err, pipeline.ErrSlotNotFound):
		httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
	case errors.Is(err, conversation.ErrTurnInFlight):
		httpError(w, http.StatusConflict, "conflict_error", "%v", err)
	case errors.Is(err, conversation.ErrWrongKind),
		errors.Is(err, conversation.ErrUnknownAction):
		httpError(w, http.StatusUnprocessableEntity, "unprocessable_error", "%v", err)
	case errors.Is(err, pipeline.ErrEmptyText),
		errors.Is(err, ingest.ErrInvalidRequest):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	default:
		zap.L().Error("request failed", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "api_error", "internal error")
	}
}
