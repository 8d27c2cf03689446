package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pantry/internal/logging"
	"pantry/internal/pantry"
)

const (
	pingPeriod   = 25 * time.Second
	pongWait     = 60 * time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origins are not checked; access is governed by the bearer token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream pushes a full inventory snapshot on connect and after every
// change. A slow client skips intermediate snapshots. The socket is closed
// when the inventory subscription ends.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	logger := logging.WithContext(ctx, s.logger)

	latest := make(chan []pantry.Item, 1)
	sub, err := s.inventory.Subscribe(ctx, func(items []pantry.Item) {
		select {
		case latest <- items:
			return
		default:
		}
		select {
		case <-latest:
		default:
		}
		select {
		case latest <- items:
		default:
		}
	})
	if err != nil {
		logger.Warn("stream subscribe failed", logging.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(writeTimeout))
		return
	}
	defer sub.Close()

	s.metrics.StreamOpened()
	defer s.metrics.StreamClosed()
	logger.Debug("stream client connected", logging.String("remote", r.RemoteAddr))

	// read loop ends on client close/error
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		case <-sub.Done():
			logger.Debug("stream subscription ended")
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "inventory closed"),
				time.Now().Add(writeTimeout))
			return
		case items := <-latest:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(StreamMessage{Type: "snapshot", Items: FromItems(items)}); err != nil {
				logger.Debug("stream write failed", logging.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
