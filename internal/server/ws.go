package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kapu/campaign-ops-go/internal/constants"
	"github.com/kapu/campaign-ops-go/internal/session"
	"go.uber.org/zap"
)

const pongWait = 60 * time.Second

// handleWebSocket streams state snapshots of the caller's session until the
// client goes away or the session closes.
func (s *Server) handleWebSocket(c *gin.Context) {
	sess := currentSession(c)
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	snapshots, unsubscribe := sess.Controller.Store().Subscribe()
	done := make(chan struct{})
	go s.readPump(conn, done)
	s.writePump(conn, snapshots, done)
	unsubscribe()
}

// readPump discards client messages and keeps the read deadline alive.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, snapshots <-chan session.State, done <-chan struct{}) {
	ping := time.NewTicker(constants.SessionLimits.WebSocketPing)
	defer func() {
		ping.Stop()
		_ = conn.Close()
	}()

	writeTTL := constants.SessionLimits.WebSocketWriteTTL
	for {
		select {
		case state, ok := <-snapshots:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTTL))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "sesión cerrada"))
				return
			}
			if err := conn.WriteJSON(state); err != nil {
				s.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTTL))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
