package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pairchat/internal/auth"
	"pairchat/internal/hub"
	"pairchat/internal/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveWS upgrades the connection and registers it as the caller's live
// channel. The latest connection wins; the handle keeps a superseded
// connection's teardown from evicting its replacement.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	uid := auth.UID(r.Context())

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := hub.NewConn(uid, s.pushBuffer)
	s.hub.Set(c)
	metrics.OnlineConns.Set(float64(s.hub.Len()))
	s.log.Info("ws connected", zap.Int64("uid", uid), zap.String("handle", c.Handle))

	// Greeting goes out before the write loop owns the socket.
	_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"ok":true}`))

	go s.writeLoop(ws, c)
	go s.readLoop(ws, c)
}

func (s *Server) writeLoop(ws *websocket.Conn, c *hub.Conn) {
	for {
		select {
		case b := <-c.Out:
			_ = ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
				s.drop(ws, c)
				return
			}
		case <-c.Done:
			_ = ws.Close()
			return
		}
	}
}

// readLoop discards inbound frames; its job is noticing the peer going
// away so presence gets revoked promptly.
func (s *Server) readLoop(ws *websocket.Conn, c *hub.Conn) {
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			s.drop(ws, c)
			return
		}
	}
}

func (s *Server) drop(ws *websocket.Conn, c *hub.Conn) {
	if s.hub.Del(c.UID, c.Handle) {
		s.log.Info("ws disconnected", zap.Int64("uid", c.UID), zap.String("handle", c.Handle))
	}
	c.Close()
	_ = ws.Close()
	metrics.OnlineConns.Set(float64(s.hub.Len()))
}
