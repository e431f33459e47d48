package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"detectreview/internal/dto"
	"detectreview/internal/errs"
	"detectreview/internal/logger"
)

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// writeError reports err as {error, kind} with a status derived from its kind.
func writeError(w http.ResponseWriter, err error, logger *logger.Logger) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed: %v", err)
	}
	writeJSON(w, status, dto.ErrorResponse{Error: err.Error(), Kind: errs.KindOf(err)}, logger)
}

// StatusFor maps an error to the HTTP status the command API answers with.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errs.ErrInvalidTransition),
		errors.Is(err, errs.ErrModeBusy),
		errors.Is(err, errs.ErrNothingToCapture):
		return http.StatusConflict
	case errors.Is(err, errs.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidFrame):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrDeviceUnavailable),
		errors.Is(err, errs.ErrSourceReadFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, errs.ErrOracleUnavailable),
		errors.Is(err, errs.ErrOracleRejected),
		errors.Is(err, errs.ErrStoreUnavailable),
		errors.Is(err, errs.ErrPersistFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}
