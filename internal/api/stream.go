package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

var heartbeatInterval = 15 * time.Second

// TourEventsStreamHandler handles GET /v1/tours/{tourID}/events/stream (SSE).
func (s *Server) TourEventsStreamHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTour(w, r)
	if !ok {
		return
	}
	s.streamEvents(w, r, t.ID, map[string]any{"tourId": t.ID})
}

// TenantEventsStreamHandler handles GET /v1/events/stream (SSE) for every tour of the tenant.
func (s *Server) TenantEventsStreamHandler(w http.ResponseWriter, r *http.Request) {
	_, tenant := s.withTenant(r)
	s.streamEvents(w, r, tenantKey(tenant), map[string]any{"tenantId": tenant})
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, key string, hello map[string]any) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(key)
	defer s.Broker.Unsubscribe(key, ch)

	heartbeat := func() {
		hello["ts"] = time.Now().UTC().Format(time.RFC3339)
		b, _ := json.Marshal(hello)
		fmt.Fprintf(w, "event: heartbeat\ndata: %s\n\n", b)
		flusher.Flush()
	}
	heartbeat()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, b)
			flusher.Flush()
		case <-ticker.C:
			heartbeat()
		}
	}
}
