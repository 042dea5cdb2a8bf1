package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	wsPingInterval = 20 * time.Second
	wsReadDeadline = 60 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// EventsWSHandler handles GET /v1/events/ws: the same live feed as the SSE
// stream, over a WebSocket. The server pings every 20s and drops clients
// that miss the read deadline. Clients are not expected to send anything;
// the read loop only services control frames.
func (s *Server) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("auvId")
	if channel == "" {
		channel = firehoseChannel
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch := s.Broker.Subscribe(channel)
	defer s.Broker.Unsubscribe(channel, ch)

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}
