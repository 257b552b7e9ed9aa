package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Lash-L/hubcore/internal/flow"
)

// startFlowRequest is the request body for POST /flows.
type startFlowRequest struct {
	Domain string `json:"domain"`
}

// submitFlowRequest is the request body for POST /flows/{id}.
type submitFlowRequest struct {
	StepID string            `json:"step_id"`
	Input  map[string]string `json:"input"`
}

// handleListFlowDomains returns the integration domains that support pairing.
func (s *Server) handleListFlowDomains(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"domains": s.flows.Domains(),
	})
}

// handleStartFlow begins a new pairing flow and returns its first step.
func (s *Server) handleStartFlow(w http.ResponseWriter, r *http.Request) {
	var req startFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Domain == "" {
		writeBadRequest(w, "domain is required")
		return
	}

	result, err := s.flows.Start(r.Context(), req.Domain)
	if err != nil {
		if errors.Is(err, flow.ErrUnknownDomain) {
			writeNotFound(w, "no pairing flow for domain: "+req.Domain)
			return
		}
		s.logger.Error("failed to start pairing flow", "domain", req.Domain, "error", err)
		writeInternalError(w, "failed to start flow")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// handleSubmitFlow advances a pairing flow with user input.
func (s *Server) handleSubmitFlow(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "id")

	var req submitFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.StepID == "" {
		writeBadRequest(w, "step_id is required")
		return
	}

	result, err := s.flows.Submit(r.Context(), flowID, req.StepID, req.Input)
	if err != nil {
		if errors.Is(err, flow.ErrFlowNotFound) {
			writeNotFound(w, "flow not found")
			return
		}
		s.logger.Error("failed to submit flow step", "flow_id", flowID, "error", err)
		writeInternalError(w, "failed to submit flow step")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleCancelFlow abandons an in-progress pairing flow.
func (s *Server) handleCancelFlow(w http.ResponseWriter, r *http.Request) {
	flowID := chi.URLParam(r, "id")

	if err := s.flows.Cancel(flowID); err != nil {
		if errors.Is(err, flow.ErrFlowNotFound) {
			writeNotFound(w, "flow not found")
			return
		}
		writeInternalError(w, "failed to cancel flow")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
