package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Lash-L/hubcore/internal/entity"
)

// commandRequest is the request body for POST /entities/{id}/command.
type commandRequest struct {
	Command string         `json:"command"`
	Args    map[string]any `json:"args"`
}

// handleListEntities returns all registered entities.
func (s *Server) handleListEntities(w http.ResponseWriter, _ *http.Request) {
	snapshots := s.entities.List()

	writeJSON(w, http.StatusOK, map[string]any{
		"entities": snapshots,
		"count":    len(snapshots),
	})
}

// handleGetEntity returns a single entity by ID.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := s.entities.Get(id)
	if err != nil {
		writeNotFound(w, "entity not found")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// handleEntityCommand executes a command against an entity.
func (s *Server) handleEntityCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	err := s.entities.Command(r.Context(), id, req.Command, req.Args)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"id":      id,
			"command": req.Command,
			"status":  "ok",
		})
	case errors.Is(err, entity.ErrEntityNotFound):
		writeNotFound(w, "entity not found")
	case errors.Is(err, entity.ErrNotCommandable):
		writeBadRequest(w, "entity does not accept commands")
	case errors.Is(err, entity.ErrUnknownCommand):
		writeBadRequest(w, "unknown command: "+req.Command)
	case errors.Is(err, entity.ErrCommandFailed):
		s.logger.Warn("entity command rejected", "entity_id", id, "command", req.Command, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	default:
		s.logger.Error("entity command failed", "entity_id", id, "command", req.Command, "error", err)
		writeInternalError(w, "command failed")
	}
}
