package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"shardd/pkg/types"
)

// eventsBuffer bounds progress queued for a slow /events client; older
// samples are dropped first, complete and error events are kept.
const eventsBuffer = 64

type progressLine struct {
	Shard types.Shard `json:"shard"`
	types.ProgressEvent
}

// eventsHandler streams throttled download progress as NDJSON until the
// client disconnects or the server shuts down.
func eventsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch := make(chan progressLine, eventsBuffer)
		unsubscribe := svc.Subscribe(func(sh types.Shard, ev types.ProgressEvent) {
			line := progressLine{Shard: sh, ProgressEvent: ev}
			select {
			case ch <- line:
			default:
				if ev.Status == types.DownloadInProgress {
					return
				}
				// make room for a terminal event
				select {
				case <-ch:
				default:
				}
				select {
				case ch <- line:
				default:
				}
			}
		})
		defer unsubscribe()
		eventStreams.Inc()
		defer eventStreams.Dec()

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		if flusher != nil {
			flusher.Flush()
		}

		out := io.Writer(w)
		if requestLogLevel(r) >= LevelDebug {
			out = io.MultiWriter(w, &loggingLineWriter{prefix: "events"})
		}
		enc := json.NewEncoder(out)
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case line := <-ch:
				if err := enc.Encode(line); err != nil {
					return
				}
				if flusher != nil {
					flusher.Flush()
				}
			}
		}
	}
}
