package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// keepAlive is how often an idle stream gets a comment line.
const keepAlive = 15 * time.Second

// handleUploadEvents streams an upload's progress as server-sent events.
// History is replayed first, so late subscribers miss nothing; the stream
// ends after the done or error event.
func (s *Server) handleUploadEvents(w http.ResponseWriter, r *http.Request) {
	up, err := s.store.getUpload(chi.URLParam(r, "id"), chi.URLParam(r, "uploadId"), userFrom(r.Context()))
	if err != nil {
		s.storeError(w, err, "Upload")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	next := 0
	for {
		evs, changed, finished := up.since(next)
		for _, ev := range evs {
			data, err := json.Marshal(ev.Data)
			if err != nil {
				s.log.Error().Err(err).Msg("encoding upload event")
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data); err != nil {
				return
			}
		}
		next += len(evs)
		flusher.Flush()
		if finished {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-changed:
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
