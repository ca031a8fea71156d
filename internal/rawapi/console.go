package rawapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// Basic Auth handles security; allow all origins
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleConsole upgrades to a websocket. Every text line is a raw request,
// "netfn cmd data...", in hex; the reply line holds the response bytes
// starting with the completion code, or "error: ..." when the exchange
// failed.
func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer ws.Close()
	s.logger.WithField("remote", r.RemoteAddr).Info("console connected")

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.WithError(err).Debug("console read")
			}
			return
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := ws.WriteMessage(websocket.TextMessage, []byte(s.consoleLine(r, line))); err != nil {
				return
			}
		}
	}
}

func (s *Server) consoleLine(r *http.Request, line string) string {
	b, err := parseHex(line)
	if err != nil {
		return "error: invalid hex"
	}
	if len(b) < 2 {
		return "error: need netfn and command"
	}
	rsp, err := s.conn.Raw(r.Context(), 0, b[0], b[1:])
	if err != nil {
		return "error: " + err.Error()
	}
	return formatHex(rsp)
}
