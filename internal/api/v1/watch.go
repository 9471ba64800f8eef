package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stacklok/asteroid-radar/internal/api/common"
	pkgsync "github.com/stacklok/asteroid-radar/internal/sync"
)

// SSE event names
const (
	EventView   = "view"
	EventStatus = "status"
)

// watchBuffer is how many undelivered updates a slow client may have queued
const watchBuffer = 8

// watchAsteroids handles GET /v1/asteroids/watch.
//
// The stream opens with the current view, then sends one "view" event per republish
// and one "status" event per phase change that did not republish. A client that falls
// behind loses intermediate updates but always receives the latest one.
func (routes *Routes) watchAsteroids(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		common.WriteErrorResponse(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	updates := make(chan pkgsync.Update, watchBuffer)
	cancel := routes.engine.Subscribe(func(u pkgsync.Update) {
		offerLatest(updates, u)
	})
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// The server's WriteTimeout must not cut long-lived streams
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		slog.Debug("Could not clear write deadline", "error", err)
	}

	_, _ = fmt.Fprintf(w, "retry: %d\n\n", 5000)
	flusher.Flush()

	remote := r.RemoteAddr
	slog.Debug("Watch stream connected", "remote_addr", remote)
	defer slog.Debug("Watch stream disconnected", "remote_addr", remote)

	var lastSeq uint64
	if current := routes.engine.CurrentView(); current != nil {
		if err := writeEvent(w, EventView, current.Seq, newViewResponse(current)); err != nil {
			return
		}
		lastSeq = current.Seq
		flusher.Flush()
	}

	keepalive := time.NewTicker(routes.keepalive)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case u := <-updates:
			var err error
			switch {
			case u.View != nil && u.View.Seq > lastSeq:
				err = writeEvent(w, EventView, u.View.Seq, newViewResponse(u.View))
				lastSeq = u.View.Seq
			default:
				err = writeEvent(w, EventStatus, lastSeq, u.Status)
			}
			if err != nil {
				slog.Debug("Watch stream write failed", "remote_addr", remote, "error", err)
				return
			}
			flusher.Flush()
			keepalive.Reset(routes.keepalive)

		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ":\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// offerLatest queues u, dropping the oldest queued update when the buffer is full.
// Subscribers are notified one at a time, so there is a single producer.
func offerLatest(ch chan pkgsync.Update, u pkgsync.Update) {
	select {
	case ch <- u:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- u:
	default:
	}
}

func writeEvent(w http.ResponseWriter, event string, id uint64, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", event, id, data)
	return err
}
