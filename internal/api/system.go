package api

import (
	"encoding/json"
	"net/http"
)

// FactoryResetRequest defines the options for a factory reset.
type FactoryResetRequest struct {
	Confirm string `json:"confirm"`
}

// FactoryResetResponse reports what was deleted.
type FactoryResetResponse struct {
	Status         string `json:"status"`
	EntriesDeleted int    `json:"entries_deleted"`
}

// handleFactoryReset unloads every integration and deletes all config
// entries, returning the hub to an unpaired state.
//
// This is a destructive operation, so the request must include an exact
// confirmation string as a safety guard.
func (s *Server) handleFactoryReset(w http.ResponseWriter, r *http.Request) {
	var req FactoryResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	// Safety guard: require exact confirmation string.
	if req.Confirm != "FACTORY RESET" {
		writeBadRequest(w, `confirm field must be exactly "FACTORY RESET"`)
		return
	}

	ctx := r.Context()
	snapshots, err := s.entries.Snapshots(ctx)
	if err != nil {
		s.logger.Error("factory reset: failed to list entries", "error", err)
		writeInternalError(w, "failed to list entries")
		return
	}

	deleted := 0
	for _, snap := range snapshots {
		if err := s.entries.Delete(ctx, snap.ID); err != nil {
			s.logger.Error("factory reset: failed to delete entry",
				"entry_id", snap.ID,
				"domain", snap.Domain,
				"error", err,
			)
			writeInternalError(w, "failed to delete entry "+snap.ID)
			return
		}
		deleted++
	}

	s.logger.Warn("factory reset completed", "entries_deleted", deleted)

	writeJSON(w, http.StatusOK, FactoryResetResponse{
		Status:         "ok",
		EntriesDeleted: deleted,
	})
}
