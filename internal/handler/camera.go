package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"detectreview/internal/dto"
	"detectreview/internal/logger"
	"detectreview/internal/service/session"
)

// Dispatcher is the session machine as seen by the command API.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd session.Command) (session.Snapshot, error)
	State() session.Snapshot
}

// CommandHandler runs one session command. The optional JSON body supplies
// path, delta, index or notes; an {id} path segment supplies the record id.
// It answers with the resulting snapshot.
func CommandHandler(machine Dispatcher, name session.CommandName, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cmd session.Command
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil && err != io.EOF {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body: " + err.Error()}, logger)
			return
		}
		cmd.Name = name

		if r.PathValue("id") != "" {
			id, err := pathID(r)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()}, logger)
				return
			}
			cmd.ID = id
		}

		snapshot, err := machine.Dispatch(r.Context(), cmd)
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snapshot, logger)
	}
}

// StateHandler returns the current session snapshot.
func StateHandler(machine Dispatcher, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, machine.State(), logger)
	}
}
