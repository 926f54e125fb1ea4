package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	sseBuffer    = 64
	sseKeepalive = 30 * time.Second
)

// streamEvents writes every workflow event as an SSE "event: <topic>" frame
// until the client goes away.
func (r *Router) streamEvents(w http.ResponseWriter, req *http.Request) {
	if r.events == nil {
		errorJSON(w, r.logger, http.StatusServiceUnavailable, "event stream is not enabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		errorJSON(w, r.logger, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch, release := r.events.Subscribe(sseBuffer)
	defer release()

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(sseKeepalive)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				r.logger.Warn("encode event", zap.String("topic", ev.Topic), zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Topic, data); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-req.Context().Done():
			return
		}
	}
}
