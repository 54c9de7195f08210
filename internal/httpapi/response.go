package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"shelfd/internal/bootstrap/logging"
	"shelfd/internal/errs"
	"shelfd/internal/ports"
	"shelfd/internal/usecase/catalog"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type pagedEnvelope struct {
	Success bool `json:"success"`
	Page    int  `json:"page"`
	Data    any  `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData(w http.ResponseWriter, value any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: value})
}

func writePage(w http.ResponseWriter, page int, value any) {
	writeJSON(w, http.StatusOK, pagedEnvelope{Success: true, Page: page, Data: value})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

// writeFailure maps err to the single error response shape. Not-found
// sentinels become 404, bad input 400, everything else a logged 500.
func writeFailure(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ports.ErrSeriesNotFound):
		writeMessage(w, http.StatusNotFound, "series not found")
	case errors.Is(err, ports.ErrChapterNotFound):
		writeMessage(w, http.StatusNotFound, "chapter not found")
	case errors.Is(err, catalog.ErrInvalidArchiveKind):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errs.IsAny(err, context.Canceled, context.DeadlineExceeded):
		logging.Warn(ctx, "request aborted", slog.Any("err", errs.Loggable(err)))
		writeMessage(w, http.StatusServiceUnavailable, "request aborted")
	default:
		logging.Error(ctx, "request failed", slog.Any("err", errs.Loggable(err)))
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
