package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Lash-L/hubcore/internal/entry"
)

// handleListEntries returns all config entries with their runtime state.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.entries.Snapshots(r.Context())
	if err != nil {
		s.logger.Error("failed to list config entries", "error", err)
		writeInternalError(w, "failed to list entries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": snapshots,
		"count":   len(snapshots),
	})
}

// handleDeleteEntry unloads and permanently removes a config entry.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.entries.Delete(r.Context(), id); err != nil {
		if errors.Is(err, entry.ErrEntryNotFound) {
			writeNotFound(w, "entry not found")
			return
		}
		s.logger.Error("failed to delete config entry", "entry_id", id, "error", err)
		writeInternalError(w, "failed to delete entry")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleReloadEntry tears down and re-runs setup for a config entry.
func (s *Server) handleReloadEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.entries.Reload(r.Context(), id); err != nil {
		if errors.Is(err, entry.ErrEntryNotFound) {
			writeNotFound(w, "entry not found")
			return
		}
		// Setup failures are not transport errors; report the resulting
		// state so the client can show retry / error status.
		s.logger.Warn("entry reload failed", "entry_id", id, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":    id,
		"state": s.entries.State(id),
	})
}
