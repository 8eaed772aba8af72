package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/shubcodes/fw-intellibrowse-agent/pkg/agent"
	"github.com/shubcodes/fw-intellibrowse-agent/pkg/orchestrator"
)

// handleWebSocket serves the bidirectional transport: each client message is
// an instructionRequest, answered by the full event stream for that
// instruction. Instructions over one connection are handled sequentially.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	s.logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("WebSocket client connected")

	for {
		var req instructionRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		if err := s.streamOverWebSocket(conn, r, req); err != nil {
			s.logger.Debug().Err(err).Msg("WebSocket write failed")
			return
		}
	}
}

func (s *Server) streamOverWebSocket(conn *websocket.Conn, r *http.Request, req instructionRequest) error {
	events, err := s.orch.ProcessInstructionStream(r.Context(), req.SessionID, req.Instruction)
	if err != nil {
		// Orchestrator rejections become error events so the protocol
		// stays uniform for websocket clients.
		return writeWSEvent(conn, agent.Event{Type: agent.EventError, Content: wsErrorContent(err)})
	}

	for ev := range events {
		if err := writeWSEvent(conn, ev); err != nil {
			return err
		}
	}
	return nil
}

func wsErrorContent(err error) string {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidInput),
		errors.Is(err, orchestrator.ErrSessionNotFound),
		errors.Is(err, orchestrator.ErrSessionBusy):
		return err.Error()
	default:
		return "internal error processing instruction"
	}
}

func writeWSEvent(conn *websocket.Conn, ev agent.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
