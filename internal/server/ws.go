package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/raysh454/cyberguard/internal/checks"
	"github.com/raysh454/cyberguard/internal/logging"
)

// handleChecksWS runs checks submitted over a WebSocket, one message at a
// time. Each request gets a "status" event followed by "result" or "error".
func (s *Server) handleChecksWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.cfg.MaxBodyBytes)

	ctx := r.Context()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket closed", logging.Field{Key: "error", Value: err.Error()})
			}
			return
		}

		var req WSRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			if err := conn.WriteJSON(WSEvent{Type: "error", Error: "invalid JSON", Code: http.StatusBadRequest}); err != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(WSEvent{Type: "status", ID: req.ID, Kind: req.Kind, Status: "analyzing"}); err != nil {
			return
		}

		ev := WSEvent{Type: "result", ID: req.ID, Kind: req.Kind}
		rep, err := s.checks.Run(ctx, checks.Request{Kind: req.Kind, Text: req.Text})
		if err != nil {
			code := statusFor(err)
			if code >= http.StatusInternalServerError {
				s.logger.Error("websocket check failed", logging.Field{Key: "kind", Value: string(req.Kind)}, logging.Field{Key: "error", Value: err})
			}
			ev.Type, ev.Error, ev.Code = "error", errorMessage(err, code), code
		} else {
			ev.Report = rep
		}
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}
