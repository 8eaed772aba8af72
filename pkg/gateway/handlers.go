package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shubcodes/fw-intellibrowse-agent/pkg/agent"
	"github.com/shubcodes/fw-intellibrowse-agent/pkg/orchestrator"
)

// instructionRequest is the body of both instruction endpoints. An empty
// sessionId starts a fresh session.
type instructionRequest struct {
	SessionID   string `json:"sessionId"`
	Instruction string `json:"instruction"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps orchestrator errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, orchestrator.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, orchestrator.ErrSessionBusy):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeInstruction(r *http.Request) (instructionRequest, error) {
	var req instructionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("%w: %s", orchestrator.ErrInvalidInput, "malformed JSON body")
	}
	return req, nil
}

func (s *Server) handleInstruction(w http.ResponseWriter, r *http.Request) {
	req, err := decodeInstruction(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.orch.ProcessInstruction(r.Context(), req.SessionID, req.Instruction)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleInstructionStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeInstruction(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	events, err := s.orch.ProcessInstructionStream(r.Context(), req.SessionID, req.Instruction)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if err := writeSSE(w, ev); err != nil {
				s.logger.Debug().Err(err).Msg("SSE client gone")
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev agent.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	id, err := s.orch.CreateSession()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": id})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.orch.GetSessionInfo(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.orch.CleanupSession(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}
