package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// EventsStreamHandler handles GET /v1/events/stream: a Server-Sent Events
// feed of compliance events. ?auvId= narrows the feed to one vehicle;
// without it the firehose is served. Heartbeats keep idle connections open
// through proxies.
func (s *Server) EventsStreamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "response writer cannot flush", r.URL.Path)
		return
	}
	channel := r.URL.Query().Get("auvId")
	if channel == "" {
		channel = firehoseChannel
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := s.Broker.Subscribe(channel)
	defer s.Broker.Unsubscribe(channel, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\ndata: {\"ts\":%q}\n\n", time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(evt.Data)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
			flusher.Flush()
		case <-time.After(15 * time.Second):
			heartbeat()
		}
	}
}
