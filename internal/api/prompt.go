package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/flitsinc/skyagent/internal/actor"
)

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if s.Prompt == nil {
		writeError(w, http.StatusInternalServerError, errNotFound("prompt builder"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	promptText, err := s.Prompt.Build(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"system_prompt": promptText,
	})
}

// handleTrigger queues a manual action loop run. The run happens on the
// actor after any work already in progress.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if s.Agent == nil {
		writeError(w, http.StatusInternalServerError, errNotFound("actor"))
		return
	}
	var payload struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Text == "" {
		writeError(w, http.StatusBadRequest, errors.New("text is required"))
		return
	}
	if err := s.Agent.Trigger(r.Context(), payload.Text); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, actor.ErrBusy) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}
