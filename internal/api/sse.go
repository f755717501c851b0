package api

import (
	"fmt"
	"net/http"
)

// handleSSE streams the caller's notifications as Server-Sent Events.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	userID, err := s.getUserIDFromContext(r)
	if err != nil {
		s.errorJSON(w, err, http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.errorJSON(w, fmt.Errorf("streaming unsupported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", s.config.ParsedAppURL.String())
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	clientChan := s.broker.AddClient(userID)
	defer s.broker.RemoveClient(userID, clientChan)

	for {
		select {
		case message, open := <-clientChan:
			if !open {
				// Replaced by a newer connection for the same user.
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", message)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
