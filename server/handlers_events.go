package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// EventsHandler streams auth-change notifications as server-sent events. Each
// bus event becomes one SSE message named after the event, with the payload
// as JSON data.
func (s *Server) EventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		events, cancel := s.bus.Subscribe()
		defer cancel()

		for {
			select {
			case <-r.Context().Done():
				return
			case event, open := <-events:
				if !open {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					log.Warn().Err(err).Msg("failed to encode auth event")
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, data)
				flusher.Flush()
			}
		}
	}
}
