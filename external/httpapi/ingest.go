package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	ingestMaxPacketBytes = 64 << 10
	ingestPongWait       = 60 * time.Second
	ingestPingInterval   = 25 * time.Second
	ingestWriteWait      = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
}

// handleIngest accepts one Opus packet per binary websocket message.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("failed to upgrade ingest connection", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()
	slog.Info("opus ingest client connected", "remote_addr", r.RemoteAddr)

	conn.SetReadLimit(ingestMaxPacketBytes)
	_ = conn.SetReadDeadline(time.Now().Add(ingestPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(ingestPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go pingLoop(conn, done)

	var packets int64
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("opus ingest connection closed unexpectedly", "error", err, "packets", packets)
			} else {
				slog.Info("opus ingest client disconnected", "packets", packets)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(ingestPongWait))
		packets++
		s.ingest.WritePacket(data)
	}
}

func pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(ingestPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ingestWriteWait)); err != nil {
				return
			}
		}
	}
}
